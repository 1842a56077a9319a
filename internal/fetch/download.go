// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package fetch

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/jlaffaye/ftp"

	"github.com/pdiddy/pmc-harvest/internal/httputil"
	"github.com/pdiddy/pmc-harvest/pkg/types"
)

const (
	ftpDefaultPort = "21"
	ftpAnonymous   = "anonymous"
)

// Download fetches rawURL to destPath through a temporary file in the same
// directory, renaming it into place on success. http(s):// URLs use client;
// ftp:// URLs use an anonymous FTP session.
func Download(ctx context.Context, client *http.Client, rawURL, destPath string, cfg types.FetchConfig) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("parsing URL: %w", err)
	}

	var body io.ReadCloser
	switch u.Scheme {
	case "http", "https":
		resp, err := httputil.Get(ctx, client, rawURL, cfg.UserAgent, "application/gzip, application/x-gzip, */*")
		if err != nil {
			return err
		}
		body = resp.Body
	case "ftp":
		body, err = openFTP(ctx, u, cfg.Timeout)
		if err != nil {
			return err
		}
	default:
		return fmt.Errorf("unsupported URL scheme %q", u.Scheme)
	}
	defer body.Close()

	return writeAtomic(body, destPath)
}

// writeAtomic copies r into a temp file next to destPath and renames it.
func writeAtomic(r io.Reader, destPath string) error {
	tmpFile, err := os.CreateTemp(filepath.Dir(destPath), ".fetch-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	_, copyErr := io.Copy(tmpFile, r)
	closeErr := tmpFile.Close()
	if copyErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("writing download: %w", copyErr)
	}
	if closeErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing temp file: %w", closeErr)
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}

// ftpBody ties a RETR response to its control connection so closing the
// body also ends the session.
type ftpBody struct {
	*ftp.Response
	conn *ftp.ServerConn
}

func (b *ftpBody) Close() error {
	err := b.Response.Close()
	if qerr := b.conn.Quit(); err == nil {
		err = qerr
	}
	return err
}

func openFTP(ctx context.Context, u *url.URL, timeout time.Duration) (io.ReadCloser, error) {
	addr := u.Host
	if u.Port() == "" {
		addr = net.JoinHostPort(u.Hostname(), ftpDefaultPort)
	}

	opts := []ftp.DialOption{ftp.DialWithContext(ctx)}
	if timeout > 0 {
		opts = append(opts, ftp.DialWithTimeout(timeout))
	}
	conn, err := ftp.Dial(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("FTP dial %s: %w", addr, err)
	}

	user, pass := ftpCredentials(u)
	if err := conn.Login(user, pass); err != nil {
		conn.Quit()
		return nil, fmt.Errorf("FTP login: %w", err)
	}

	resp, err := conn.Retr(u.Path)
	if err != nil {
		conn.Quit()
		return nil, fmt.Errorf("FTP RETR %s: %w", u.Path, err)
	}
	return &ftpBody{Response: resp, conn: conn}, nil
}

// ftpCredentials returns the URL's userinfo, or anonymous login.
func ftpCredentials(u *url.URL) (string, string) {
	if u.User == nil || u.User.Username() == "" {
		return ftpAnonymous, ftpAnonymous
	}
	pass, _ := u.User.Password()
	return u.User.Username(), pass
}
