package api

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/url"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/goccy/go-json"

	"github.com/roadlens/trackmark/internal/storage"
	"github.com/roadlens/trackmark/pkg/core"
)

// Backend implements storage.Backend against the web application.
type Backend struct {
	client *Client
}

var _ storage.Backend = (*Backend)(nil)

// NewBackend wraps client as a storage backend.
func NewBackend(client *Client) *Backend {
	return &Backend{client: client}
}

// Init checks that the web application is reachable.
func (b *Backend) Init() error {
	ctx, cancel := context.WithTimeout(context.Background(), b.client.httpClient.Timeout)
	defer cancel()
	if err := b.client.Healthcheck(ctx); err != nil {
		return fmt.Errorf("web application not reachable at %s: %w", b.client.baseURL, err)
	}
	return nil
}

// Close releases idle connections.
func (b *Backend) Close() error {
	b.client.httpClient.CloseIdleConnections()
	return nil
}

// FetchTrack loads a file with its GPS points.
func (b *Backend) FetchTrack(ctx context.Context, fileID uint) (*core.TrackData, error) {
	var f wireFile
	if err := b.client.getJSON(ctx, "fetch track", "/api/file/"+strconv.FormatUint(uint64(fileID), 10), &f); err != nil {
		return nil, err
	}
	data := fileToCore(f)
	return &data, nil
}

// FetchAnnotations loads all annotations of a project ordered by ID.
func (b *Backend) FetchAnnotations(ctx context.Context, projectID uint) ([]core.Annotation, error) {
	q := url.Values{}
	q.Set("projectId", strconv.FormatUint(uint64(projectID), 10))

	var rows []wirePointMarker
	if err := b.client.getJSON(ctx, "fetch annotations", "/api/point-marker?"+q.Encode(), &rows); err != nil {
		return nil, err
	}
	out := make([]core.Annotation, 0, len(rows))
	for _, r := range rows {
		out = append(out, annotationToCore(r))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// CreateAnnotation posts a and copies the assigned ID and timestamps back.
func (b *Backend) CreateAnnotation(ctx context.Context, a *core.Annotation) error {
	in := annotationToWire(*a)
	in.ID = 0

	var created wirePointMarker
	if err := b.client.sendJSON(ctx, "create annotation", http.MethodPost, "/api/point-marker", in, &created, 0); err != nil {
		return err
	}
	if created.ID == 0 {
		return &core.TransportError{Op: "create annotation", Err: fmt.Errorf("response carries no id")}
	}
	got := annotationToCore(created)
	a.ID = got.ID
	a.CreatedAt = got.CreatedAt
	a.UpdatedAt = got.UpdatedAt
	return nil
}

// UpdateAnnotation replaces a on the server.
func (b *Backend) UpdateAnnotation(ctx context.Context, a *core.Annotation) error {
	var updated wirePointMarker
	if err := b.client.sendJSON(ctx, "update annotation", http.MethodPut, "/api/point-marker", annotationToWire(*a), &updated, a.ID); err != nil {
		return err
	}
	if updated.UpdatedAt != nil {
		a.UpdatedAt = *updated.UpdatedAt
	}
	return nil
}

// DeleteAnnotation deletes one annotation. The server answers 409 when it has replies.
func (b *Backend) DeleteAnnotation(ctx context.Context, id uint) error {
	q := url.Values{}
	q.Set("id", strconv.FormatUint(uint64(id), 10))
	_, err := b.client.do(ctx, "delete annotation", http.MethodDelete, "/api/point-marker?"+q.Encode(), nil, "", id)
	return err
}

// FetchTags returns the tag catalog.
func (b *Backend) FetchTags(ctx context.Context) ([]core.Tag, error) {
	var rows []wireTag
	if err := b.client.getJSON(ctx, "fetch tags", "/api/tag", &rows); err != nil {
		return nil, err
	}
	out := make([]core.Tag, 0, len(rows))
	for _, r := range rows {
		out = append(out, tagToCore(r))
	}
	return out, nil
}

// FetchMarkerTypes returns the marker type catalog.
func (b *Backend) FetchMarkerTypes(ctx context.Context) ([]core.MarkerType, error) {
	var rows []wireMarker
	if err := b.client.getJSON(ctx, "fetch marker types", "/api/marker", &rows); err != nil {
		return nil, err
	}
	out := make([]core.MarkerType, 0, len(rows))
	for _, r := range rows {
		out = append(out, markerToCore(r))
	}
	return out, nil
}

// UploadAttachment sends data as a multipart form and returns the stored URL.
func (b *Backend) UploadAttachment(ctx context.Context, data []byte, name string) (string, error) {
	const op = "upload attachment"

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	_ = writer.WriteField("filename", filepath.Base(name))
	part, err := writer.CreateFormFile("file", filepath.Base(name))
	if err != nil {
		return "", fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return "", fmt.Errorf("failed to write form file: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("failed to close form: %w", err)
	}

	body, err := b.client.do(ctx, op, http.MethodPost, "/api/upload", buf.Bytes(), writer.FormDataContentType())
	if err != nil {
		return "", err
	}
	var res wireUpload
	if err := json.Unmarshal(body, &res); err != nil || res.URL == "" {
		return "", &core.TransportError{Op: op, Err: fmt.Errorf("invalid upload response: %q", body)}
	}
	return res.URL, nil
}
