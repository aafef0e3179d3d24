// Package gdrivetest provides an in-memory fake of the Drive v3 REST surface
// used by gdrive.Client, served through an httpmock transport.
package gdrivetest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"regexp"
	"strings"
	"sync"
	"testing"

	"github.com/jarcoal/httpmock"
	"google.golang.org/api/option"

	"github.com/vbonduro/marketlabel/internal/gdrive"
)

const (
	apiBase    = "https://www.googleapis.com/drive/v3/files"
	uploadBase = "https://www.googleapis.com/upload/drive/v3/files"
)

var (
	nameRe    = regexp.MustCompile(`name='((?:[^'\\]|\\.)*)'`)
	parentRe  = regexp.MustCompile(`'((?:[^'\\]|\\.)*)' in parents`)
	mimeRe    = regexp.MustCompile(`mimeType='([^']*)'`)
	fileIDRe  = regexp.MustCompile(`^` + regexp.QuoteMeta(apiBase) + `/([^/?]+)`)
	uploadRe  = regexp.MustCompile(`^` + regexp.QuoteMeta(uploadBase) + `/([^/?]+)`)
	unescaper = strings.NewReplacer(`\'`, `'`, `\\`, `\`)
)

// File is one fake Drive file or folder.
type File struct {
	ID       string
	Name     string
	MimeType string
	Parents  []string
	Content  []byte
}

// Drive is a fake Drive holding files in insertion order.
type Drive struct {
	mu       sync.Mutex
	files    []*File
	nextID   int
	failures []int
	calls    map[string]int

	Transport *httpmock.MockTransport
}

// New returns a fake Drive with its responders registered.
func New() *Drive {
	d := &Drive{Transport: httpmock.NewMockTransport(), calls: make(map[string]int)}
	d.Transport.RegisterResponder(http.MethodGet, apiBase, d.handleList)
	d.Transport.RegisterRegexpResponder(http.MethodGet, fileIDRe, d.handleGet)
	d.Transport.RegisterResponder(http.MethodPost, uploadBase, d.handleCreate)
	d.Transport.RegisterRegexpResponder(http.MethodPatch, uploadRe, d.handleUpdate)
	return d
}

// Client returns a gdrive.Client talking to the fake.
func (d *Drive) Client(t testing.TB) *gdrive.Client {
	t.Helper()
	c, err := gdrive.New(context.Background(), "", "",
		option.WithHTTPClient(&http.Client{Transport: d.Transport}),
	)
	if err != nil {
		t.Fatalf("gdrive.New: %v", err)
	}
	return c
}

// AddFolder creates a folder under parentID ("" for the root) and returns its id.
func (d *Drive) AddFolder(name, parentID string) string {
	return d.add(name, gdrive.FolderMimeType, parentID, nil)
}

// AddFile creates a file under parentID and returns its id.
func (d *Drive) AddFile(name, parentID, mimeType string, content []byte) string {
	return d.add(name, mimeType, parentID, content)
}

// FilesNamed returns every file with the given name.
func (d *Drive) FilesNamed(name string) []File {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []File
	for _, f := range d.files {
		if f.Name == name {
			out = append(out, *f)
		}
	}
	return out
}

// FailNext makes the next request answer with status.
func (d *Drive) FailNext(status int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.failures = append(d.failures, status)
}

// Calls returns how many requests of the given kind ("list", "get",
// "create", "update") were served.
func (d *Drive) Calls(kind string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls[kind]
}

func (d *Drive) add(name, mimeType, parentID string, content []byte) string {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextID++
	f := &File{ID: fmt.Sprintf("file-%d", d.nextID), Name: name, MimeType: mimeType, Content: content}
	if parentID != "" {
		f.Parents = []string{parentID}
	}
	d.files = append(d.files, f)
	return f.ID
}

func (d *Drive) failure(kind string) (*http.Response, bool) {
	d.calls[kind]++
	if len(d.failures) == 0 {
		return nil, false
	}
	status := d.failures[0]
	d.failures = d.failures[1:]
	resp, _ := httpmock.NewJsonResponse(status, map[string]any{
		"error": map[string]any{"code": status, "message": http.StatusText(status)},
	})
	return resp, true
}

func (d *Drive) handleList(req *http.Request) (*http.Response, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if resp, failed := d.failure("list"); failed {
		return resp, nil
	}

	q := req.URL.Query().Get("q")
	var wantName, wantParent, wantMime string
	if m := nameRe.FindStringSubmatch(q); m != nil {
		wantName = unescaper.Replace(m[1])
	}
	if m := parentRe.FindStringSubmatch(q); m != nil {
		wantParent = unescaper.Replace(m[1])
	}
	if m := mimeRe.FindStringSubmatch(q); m != nil {
		wantMime = m[1]
	}

	files := []map[string]any{}
	for _, f := range d.files {
		if wantName != "" && f.Name != wantName {
			continue
		}
		if wantMime != "" && f.MimeType != wantMime {
			continue
		}
		if wantParent != "" && !contains(f.Parents, wantParent) {
			continue
		}
		files = append(files, map[string]any{"id": f.ID, "name": f.Name, "mimeType": f.MimeType})
	}
	return httpmock.NewJsonResponse(http.StatusOK, map[string]any{"files": files})
}

func (d *Drive) handleGet(req *http.Request) (*http.Response, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if resp, failed := d.failure("get"); failed {
		return resp, nil
	}

	id := fileIDRe.FindStringSubmatch(req.URL.String())[1]
	f := d.byID(id)
	if f == nil {
		return httpmock.NewJsonResponse(http.StatusNotFound, map[string]any{
			"error": map[string]any{"code": http.StatusNotFound, "message": "File not found: " + id},
		})
	}
	resp := httpmock.NewBytesResponse(http.StatusOK, f.Content)
	resp.Header.Set("Content-Type", f.MimeType)
	return resp, nil
}

func (d *Drive) handleCreate(req *http.Request) (*http.Response, error) {
	meta, content, err := readMultipart(req)
	if err != nil {
		return httpmock.NewStringResponse(http.StatusBadRequest, err.Error()), nil
	}

	d.mu.Lock()
	if resp, failed := d.failure("create"); failed {
		d.mu.Unlock()
		return resp, nil
	}
	d.mu.Unlock()

	parent := ""
	if len(meta.Parents) > 0 {
		parent = meta.Parents[0]
	}
	id := d.add(meta.Name, meta.contentType(), parent, content)
	return httpmock.NewJsonResponse(http.StatusOK, map[string]any{"id": id})
}

func (d *Drive) handleUpdate(req *http.Request) (*http.Response, error) {
	_, content, err := readMultipart(req)
	if err != nil {
		return httpmock.NewStringResponse(http.StatusBadRequest, err.Error()), nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if resp, failed := d.failure("update"); failed {
		return resp, nil
	}

	id := uploadRe.FindStringSubmatch(req.URL.String())[1]
	f := d.byID(id)
	if f == nil {
		return httpmock.NewJsonResponse(http.StatusNotFound, map[string]any{
			"error": map[string]any{"code": http.StatusNotFound, "message": "File not found: " + id},
		})
	}
	f.Content = content
	return httpmock.NewJsonResponse(http.StatusOK, map[string]any{"id": f.ID})
}

func (d *Drive) byID(id string) *File {
	for _, f := range d.files {
		if f.ID == id {
			return f
		}
	}
	return nil
}

type metadata struct {
	Name     string   `json:"name"`
	Parents  []string `json:"parents"`
	MimeType string   `json:"mimeType"`

	mediaType string
}

// readMultipart decodes a multipart/related upload: JSON metadata then media.
func readMultipart(req *http.Request) (metadata, []byte, error) {
	var meta metadata
	mediaType, params, err := mime.ParseMediaType(req.Header.Get("Content-Type"))
	if err != nil {
		return meta, nil, fmt.Errorf("bad content type: %w", err)
	}
	if !strings.HasPrefix(mediaType, "multipart/") {
		return meta, nil, fmt.Errorf("unexpected upload type %q", mediaType)
	}

	mr := multipart.NewReader(req.Body, params["boundary"])
	metaPart, err := mr.NextPart()
	if err != nil {
		return meta, nil, fmt.Errorf("missing metadata part: %w", err)
	}
	if err := json.NewDecoder(metaPart).Decode(&meta); err != nil {
		return meta, nil, fmt.Errorf("bad metadata: %w", err)
	}
	mediaPart, err := mr.NextPart()
	if err != nil {
		return meta, nil, fmt.Errorf("missing media part: %w", err)
	}
	meta.mediaType = mediaPart.Header.Get("Content-Type")
	content, err := io.ReadAll(mediaPart)
	if err != nil {
		return meta, nil, fmt.Errorf("read media: %w", err)
	}
	return meta, content, nil
}

func (m metadata) contentType() string {
	if m.MimeType != "" {
		return m.MimeType
	}
	return m.mediaType
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
