package main

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"net/url"
	"os"
	"path"
	"strings"

	awss3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"go.uber.org/zap"
)

var sugar *zap.SugaredLogger

type ArtifactFetcher interface {
	Fetch(ctx context.Context, rawURL string, destPath string) (DownloadResult, error)
	FetchText(ctx context.Context, rawURL string) (string, error)
}

type Downloader struct {
	client      *http.Client
	userAgent   string
	blockSize   int
	progress    ProgressReporter
	s3Endpoint  string
	newS3Client func(ctx context.Context, endpoint string) (S3ClientInterface, error)
	s3client    S3ClientInterface
}

func NewDownloader(config Configuration, progress ProgressReporter) *Downloader {
	if progress == nil {
		progress = noopProgress{}
	}
	userAgent := config.UserAgent
	if userAgent == "" {
		userAgent = DEFAULT_USER_AGENT
	}
	return &Downloader{
		client:     newHTTPClient(),
		userAgent:  userAgent,
		blockSize:  DOWNLOAD_BLOCK_SIZE,
		progress:   progress,
		s3Endpoint: config.S3Endpoint,
		newS3Client: func(ctx context.Context, endpoint string) (S3ClientInterface, error) {
			return NewS3Client(ctx, endpoint)
		},
	}
}

func newHTTPClient() *http.Client {
	transport := &http.Transport{
		Proxy:             http.ProxyFromEnvironment,
		TLSClientConfig:   &tls.Config{MinVersion: tls.VersionTLS12},
		ForceAttemptHTTP2: true,
	}
	return &http.Client{Transport: transport}
}

// Fetch streams rawURL into destPath. Whatever was at destPath before is
// removed first, and on any failure destPath does not exist afterwards.
func (d *Downloader) Fetch(ctx context.Context, rawURL string, destPath string) (DownloadResult, error) {
	removeIfExists(destPath)

	body, total, err := d.open(ctx, rawURL)
	if err != nil {
		return DownloadResult{}, err
	}
	defer body.Close()

	out, err := os.OpenFile(destPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, os.FileMode(0644))
	if err != nil {
		return DownloadResult{}, fmt.Errorf("error creating %s: %w", destPath, err)
	}

	written, err := d.stream(rawURL, body, out, total)
	closeErr := out.Close()
	if err == nil && closeErr != nil {
		err = fmt.Errorf("error closing %s: %w", destPath, closeErr)
	}
	if err == nil && total >= 0 && written != total {
		err = fetchFailure(FETCH_SIZE_MISMATCH, rawURL, fmt.Errorf("server announced %d bytes, received %d", total, written))
	}
	if err != nil {
		removeIfExists(destPath)
		return DownloadResult{}, err
	}

	sugar.Debugf("downloaded %d bytes from %s to %s", written, rawURL, destPath)
	return DownloadResult{URL: rawURL, Path: destPath, Bytes: written}, nil
}

// FetchText returns the body of a small text resource such as a checksum sidecar.
func (d *Downloader) FetchText(ctx context.Context, rawURL string) (string, error) {
	body, _, err := d.open(ctx, rawURL)
	if err != nil {
		return "", err
	}
	defer body.Close()

	contents, err := io.ReadAll(io.LimitReader(body, MAX_CHECKSUM_SIZE+1))
	if err != nil {
		return "", fetchFailure(FETCH_TRANSPORT_ERROR, rawURL, err)
	}
	if len(contents) > MAX_CHECKSUM_SIZE {
		return "", fetchFailure(FETCH_SIZE_MISMATCH, rawURL, fmt.Errorf("text resource is larger than %d bytes", MAX_CHECKSUM_SIZE))
	}
	return string(contents), nil
}

func (d *Downloader) stream(rawURL string, body io.Reader, out io.Writer, total int64) (int64, error) {
	d.progress.Begin(path.Base(rawURL), total)
	defer d.progress.Done()

	blockSize := d.blockSize
	if blockSize <= 0 {
		blockSize = DOWNLOAD_BLOCK_SIZE
	}
	buf := make([]byte, blockSize)
	var written int64
	for {
		n, readErr := body.Read(buf)
		if n > 0 {
			if _, err := out.Write(buf[:n]); err != nil {
				return written, fmt.Errorf("error writing download of %s: %w", rawURL, err)
			}
			written += int64(n)
			d.progress.Advance(written)
		}
		if readErr == io.EOF {
			return written, nil
		}
		if readErr != nil {
			// a connection that drops before the announced length is a truncated download
			if errors.Is(readErr, io.ErrUnexpectedEOF) && total > 0 {
				return written, fetchFailure(FETCH_SIZE_MISMATCH, rawURL, fmt.Errorf("server announced %d bytes, received %d: %w", total, written, readErr))
			}
			return written, fetchFailure(FETCH_TRANSPORT_ERROR, rawURL, readErr)
		}
	}
}

// open returns the body of rawURL and its announced size, -1 if unknown.
func (d *Downloader) open(ctx context.Context, rawURL string) (io.ReadCloser, int64, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, 0, fetchFailure(FETCH_TRANSPORT_ERROR, rawURL, err)
	}

	switch strings.ToLower(u.Scheme) {
	case "http", "https":
		return d.openHTTP(ctx, rawURL)
	case "s3":
		return d.openS3(ctx, rawURL, u)
	default:
		return nil, 0, fetchFailure(FETCH_TRANSPORT_ERROR, rawURL, fmt.Errorf("unsupported URL scheme %q", u.Scheme))
	}
}

func (d *Downloader) openHTTP(ctx context.Context, rawURL string) (io.ReadCloser, int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, 0, fetchFailure(FETCH_TRANSPORT_ERROR, rawURL, err)
	}
	req.Header.Set("User-Agent", d.userAgent)

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, 0, fetchFailure(FETCH_TRANSPORT_ERROR, rawURL, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		return nil, 0, &FetchError{Reason: FETCH_NOT_FOUND, URL: rawURL, StatusCode: resp.StatusCode}
	}
	return resp.Body, resp.ContentLength, nil
}

func (d *Downloader) openS3(ctx context.Context, rawURL string, u *url.URL) (io.ReadCloser, int64, error) {
	bucket := u.Host
	key := strings.TrimPrefix(u.Path, "/")
	if bucket == "" || key == "" {
		return nil, 0, fetchFailure(FETCH_TRANSPORT_ERROR, rawURL, fmt.Errorf("S3 URL needs both a bucket and a key"))
	}

	if d.s3client == nil {
		client, err := d.newS3Client(ctx, d.s3Endpoint)
		if err != nil {
			return nil, 0, fetchFailure(FETCH_TRANSPORT_ERROR, rawURL, err)
		}
		d.s3client = client
	}

	body, size, err := d.s3client.GetObjectStream(ctx, bucket, key)
	if err != nil {
		if isS3NotFound(err) {
			return nil, 0, fetchFailure(FETCH_NOT_FOUND, rawURL, err)
		}
		return nil, 0, fetchFailure(FETCH_TRANSPORT_ERROR, rawURL, err)
	}
	return body, size, nil
}

// any error response from S3 counts as the object not being available there
func isS3NotFound(err error) bool {
	var noSuchKey *awss3types.NoSuchKey
	if errors.As(err, &noSuchKey) {
		return true
	}
	var noSuchBucket *awss3types.NoSuchBucket
	if errors.As(err, &noSuchBucket) {
		return true
	}
	var statusErr interface{ HTTPStatusCode() int }
	if errors.As(err, &statusErr) {
		return statusErr.HTTPStatusCode() >= 300
	}
	return false
}

func removeIfExists(filePath string) {
	err := os.Remove(filePath)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		sugar.Warnf("unable to remove %s: %v", filePath, err)
	}
}
