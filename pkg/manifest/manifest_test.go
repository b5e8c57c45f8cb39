package manifest

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"imgharvest/internal/downloader"
)

func sampleReport() downloader.Report {
	return downloader.Report{
		Outcomes: []downloader.Outcome{
			{Index: 1, URL: "https://img.example/1", Status: downloader.StatusStored, Path: "/out/image_001.png", Ext: ".png", StatusCode: 200, Bytes: 42},
			{Index: 2, URL: "https://img.example/2", Status: downloader.StatusSkipped, StatusCode: 404},
			{Index: 3, URL: "https://img.example/3", Status: downloader.StatusFailed, Err: errors.New("timeout")},
		},
		Succeeded: 1,
		Skipped:   1,
		Failed:    1,
	}
}

func TestBuildManifest(t *testing.T) {
	m := New("https://search.example/?q=x", 3)
	_, err := uuid.Parse(m.RunID)
	require.NoError(t, err)

	m.SetHarvest("STOPPED_STABLE", 9, 17)
	m.AddReport(sampleReport())

	assert.Equal(t, 17, m.Discovered)
	assert.Equal(t, 1, m.Succeeded)
	require.Len(t, m.Items, 3)
	assert.Equal(t, "image_001.png", m.Items[0].File)
	assert.Equal(t, 404, m.Items[1].StatusCode)
	assert.Equal(t, "timeout", m.Items[2].Error)
	assert.False(t, m.FinishedAt.Before(m.StartedAt))
}

func TestMarshalAndLoad(t *testing.T) {
	for _, format := range []string{"json", "yaml"} {
		t.Run(format, func(t *testing.T) {
			m := New("https://search.example/", 3)
			m.SetHarvest("STOPPED_TARGET_MET", 1, 3)
			m.AddReport(sampleReport())

			data, err := m.Marshal(format)
			require.NoError(t, err)

			path := filepath.Join(t.TempDir(), FileName(format))
			require.NoError(t, os.WriteFile(path, data, 0644))

			loaded, err := Load(path)
			require.NoError(t, err)
			assert.Equal(t, m.RunID, loaded.RunID)
			assert.Equal(t, m.Items, loaded.Items)
			assert.Equal(t, "STOPPED_TARGET_MET", loaded.HarvestState)
		})
	}
}

func TestFileName(t *testing.T) {
	assert.Equal(t, "manifest.json", FileName("json"))
	assert.Equal(t, "manifest.json", FileName(""))
	assert.Equal(t, "manifest.yaml", FileName("YAML"))
	assert.Equal(t, "manifest.yaml", FileName("yml"))
}
