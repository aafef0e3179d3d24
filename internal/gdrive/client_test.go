package gdrive_test

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vbonduro/marketlabel/internal/domain"
	"github.com/vbonduro/marketlabel/internal/gdrive"
	"github.com/vbonduro/marketlabel/internal/gdrive/gdrivetest"
)

func TestNewRejectsMalformedCredentials(t *testing.T) {
	_, err := gdrive.New(context.Background(), "", "not json")
	assert.Error(t, err)
}

func TestNewMissingCredentialsFile(t *testing.T) {
	_, err := gdrive.New(context.Background(), "/nonexistent/key.json", "")
	assert.Error(t, err)
}

func TestFindFolderQuotesNames(t *testing.T) {
	fake := gdrivetest.New()
	want := fake.AddFolder("O'Brien's data", "")
	client := fake.Client(t)

	id, found, err := client.FindFolder(context.Background(), "O'Brien's data", "")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, want, id)
}

func TestFindFileSkipsFolders(t *testing.T) {
	fake := gdrivetest.New()
	root := fake.AddFolder("root", "")
	fake.AddFolder("labels.csv", root)
	client := fake.Client(t)

	f, err := client.FindFile(context.Background(), "labels.csv", root)
	require.NoError(t, err)
	assert.Nil(t, f)
}

func TestUpsertAndDownload(t *testing.T) {
	fake := gdrivetest.New()
	root := fake.AddFolder("root", "")
	client := fake.Client(t)
	ctx := context.Background()

	id, err := client.Upsert(ctx, "labels.csv", root, "text/csv", strings.NewReader("a\n1\n"))
	require.NoError(t, err)

	again, err := client.Upsert(ctx, "labels.csv", root, "text/csv", strings.NewReader("a\n2\n"))
	require.NoError(t, err)
	assert.Equal(t, id, again)

	rc, _, err := client.Download(ctx, id)
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "a\n2\n", string(data))
}

func TestErrorsAreClassified(t *testing.T) {
	fake := gdrivetest.New()
	client := fake.Client(t)
	ctx := context.Background()

	_, _, err := client.Download(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	fake.FailNext(http.StatusUnauthorized)
	_, err = client.ListFolders(ctx, "root")
	assert.ErrorIs(t, err, domain.ErrRemoteUnavailable)
}
