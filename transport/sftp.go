package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"os"
	"time"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
)

const defaultSFTPPort = "22"

// SFTP downloads sftp URLs over an authenticated SSH session. Credentials
// come from the URL, then the provider. Host keys are not verified; the
// URL form carries no fingerprint to verify against.
type SFTP struct {
	// Timeout bounds connection establishment.
	Timeout time.Duration
	// Credentials, when set, override everything else.
	Credentials *Credentials
	// CredentialProvider is consulted for hosts whose URL carries no
	// credentials.
	CredentialProvider CredentialProvider
	// Progress, when set, receives byte counts during downloads.
	Progress Progress
}

// NewSFTP returns an SFTP downloader with default settings.
func NewSFTP() *SFTP {
	return &SFTP{Timeout: defaultConnectTimeout}
}

func init() {
	Register("sftp", func() Downloader { return NewSFTP() })
}

type sftpSession struct {
	conn   *ssh.Client
	client *sftp.Client
}

func (s *sftpSession) close() {
	s.client.Close()
	s.conn.Close()
}

func (f *SFTP) connect(u *url.URL) (*sftpSession, error) {
	user, pass, err := f.credentials(u)
	if err != nil {
		return nil, err
	}
	port := u.Port()
	if port == "" {
		port = defaultSFTPPort
	}
	config := &ssh.ClientConfig{
		User:            user,
		Auth:            []ssh.AuthMethod{ssh.Password(pass)},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         f.Timeout,
	}
	conn, err := ssh.Dial("tcp", net.JoinHostPort(u.Hostname(), port), config)
	if err != nil {
		return nil, &ErrDownload{URL: u.String(), Err: err}
	}
	client, err := sftp.NewClient(conn)
	if err != nil {
		conn.Close()
		return nil, &ErrDownload{URL: u.String(), Err: err}
	}
	return &sftpSession{conn: conn, client: client}, nil
}

func (f *SFTP) credentials(u *url.URL) (user, pass string, err error) {
	if f.Credentials != nil {
		return f.Credentials.Username, f.Credentials.Password, nil
	}
	if u.User != nil {
		pass, _ := u.User.Password()
		return u.User.Username(), pass, nil
	}
	if f.CredentialProvider != nil {
		if c, ok := f.CredentialProvider(u.Hostname()); ok {
			return c.Username, c.Password, nil
		}
	}
	return "", "", fmt.Errorf("sftp: no credentials for %s", u.Hostname())
}

// Download streams the remote file into dest.
func (f *SFTP) Download(ctx context.Context, rawurl, dest string) error {
	u, err := url.Parse(rawurl)
	if err != nil {
		return err
	}
	s, err := f.connect(u)
	if err != nil {
		return err
	}
	defer s.close()

	src, err := s.client.Open(u.Path)
	if err != nil {
		return &ErrDownload{URL: rawurl, Err: err}
	}
	defer src.Close()

	var size int64
	if fi, err := src.Stat(); err == nil {
		size = fi.Size()
	}

	out, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	_, err = copyCtx(ctx, reportTo(out, f.Progress, size), src)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(dest)
		return &ErrDownload{URL: rawurl, Err: err}
	}
	return nil
}

// Available stats the remote path.
func (f *SFTP) Available(ctx context.Context, rawurl string) (bool, error) {
	u, err := url.Parse(rawurl)
	if err != nil {
		return false, err
	}
	s, err := f.connect(u)
	if err != nil {
		return false, err
	}
	defer s.close()

	_, err = s.client.Stat(u.Path)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, os.ErrNotExist):
		return false, nil
	}
	return false, &ErrDownload{URL: rawurl, Err: err}
}

// copyCtx copies src to dst, checking for cancellation between chunks.
// The ssh session has no deadline of its own, so this is the transfer's
// only cooperative cancellation point.
func copyCtx(ctx context.Context, dst io.Writer, src io.Reader) (int64, error) {
	buf := make([]byte, 64*1024)
	var written int64
	for {
		if err := ctx.Err(); err != nil {
			return written, err
		}
		n, err := src.Read(buf)
		if n > 0 {
			wn, werr := dst.Write(buf[:n])
			written += int64(wn)
			if werr != nil {
				return written, werr
			}
		}
		if err == io.EOF {
			return written, nil
		}
		if err != nil {
			return written, err
		}
	}
}
