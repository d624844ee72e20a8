package usecase

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/terminalpixel/postrchild/internal/domain/model"
)

// maxMediaSize caps downloaded attachments at 10 MB.
const maxMediaSize = 10 << 20

// MediaFetcher downloads a chat attachment so it can be re-uploaded to
// the micropub endpoint as a multipart file part.
type MediaFetcher struct {
	http *http.Client
	log  zerolog.Logger
}

func NewMediaFetcher(timeout time.Duration, log zerolog.Logger) *MediaFetcher {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &MediaFetcher{
		http: &http.Client{Timeout: timeout},
		log:  log.With().Str("component", "media").Logger(),
	}
}

func (f *MediaFetcher) Fetch(ctx context.Context, rawURL string) (*model.Media, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	resp, err := f.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching attachment: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching attachment: status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxMediaSize+1))
	if err != nil {
		return nil, fmt.Errorf("reading attachment: %w", err)
	}
	if len(data) > maxMediaSize {
		return nil, fmt.Errorf("attachment larger than %d bytes", maxMediaSize)
	}
	name := path.Base(strings.SplitN(rawURL, "?", 2)[0])
	if name == "" || name == "." || name == "/" {
		name = "attachment"
	}
	return &model.Media{
		Name:        name,
		ContentType: resp.Header.Get("Content-Type"),
		URL:         rawURL,
		Bytes:       data,
	}, nil
}
