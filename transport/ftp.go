package transport

import (
	"context"
	"io"
	"net"
	"net/url"
	"os"
	"path"
	"time"

	"github.com/jlaffaye/ftp"
)

const defaultFTPPort = "21"

// FTP downloads ftp URLs over passive-mode data connections. Credentials
// come from the URL, then the provider, then anonymous login.
type FTP struct {
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

// NewFTP returns an FTP downloader with default settings.
func NewFTP() *FTP {
	return &FTP{Timeout: defaultConnectTimeout}
}

func init() {
	Register("ftp", func() Downloader { return NewFTP() })
}

// connect dials the server named by u and logs in.
func (f *FTP) connect(ctx context.Context, u *url.URL) (*ftp.ServerConn, error) {
	port := u.Port()
	if port == "" {
		port = defaultFTPPort
	}
	conn, err := ftp.Dial(net.JoinHostPort(u.Hostname(), port),
		ftp.DialWithContext(ctx),
		ftp.DialWithTimeout(f.Timeout),
	)
	if err != nil {
		return nil, &ErrDownload{URL: u.String(), Err: err}
	}

	user, pass := f.credentials(u)
	if err := conn.Login(user, pass); err != nil {
		conn.Quit()
		return nil, &ErrDownload{URL: u.String(), Err: err}
	}
	return conn, nil
}

func (f *FTP) credentials(u *url.URL) (user, pass string) {
	if f.Credentials != nil {
		return f.Credentials.Username, f.Credentials.Password
	}
	if u.User != nil {
		pass, _ := u.User.Password()
		return u.User.Username(), pass
	}
	if f.CredentialProvider != nil {
		if c, ok := f.CredentialProvider(u.Hostname()); ok {
			return c.Username, c.Password
		}
	}
	return "anonymous", "anonymous"
}

// Download retrieves the remote file into dest.
func (f *FTP) Download(ctx context.Context, rawurl, dest string) error {
	u, err := url.Parse(rawurl)
	if err != nil {
		return err
	}
	conn, err := f.connect(ctx, u)
	if err != nil {
		return err
	}
	defer conn.Quit()

	var size int64
	if n, err := conn.FileSize(u.Path); err == nil {
		size = n
	}

	resp, err := conn.Retr(u.Path)
	if err != nil {
		return &ErrDownload{URL: rawurl, Err: err}
	}
	defer resp.Close()

	out, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	_, err = io.Copy(reportTo(out, f.Progress, size), resp)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(dest)
		return &ErrDownload{URL: rawurl, Err: err}
	}
	return nil
}

// Available lists the remote parent directory and reports whether the
// target base name appears in it.
func (f *FTP) Available(ctx context.Context, rawurl string) (bool, error) {
	u, err := url.Parse(rawurl)
	if err != nil {
		return false, err
	}
	conn, err := f.connect(ctx, u)
	if err != nil {
		return false, err
	}
	defer conn.Quit()

	entries, err := conn.List(path.Dir(u.Path))
	if err != nil {
		return false, &ErrDownload{URL: rawurl, Err: err}
	}
	base := path.Base(u.Path)
	for _, e := range entries {
		if e.Name == base {
			return true, nil
		}
	}
	return false, nil
}
