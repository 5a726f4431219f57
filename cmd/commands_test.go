//go:build !integration

package main

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"net"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"

	"github.com/sells-group/pipemap/internal/api"
	"github.com/sells-group/pipemap/internal/crs"
	"github.com/sells-group/pipemap/internal/dataset"
	"github.com/sells-group/pipemap/internal/model"
	"github.com/sells-group/pipemap/internal/shapefile/shapefiletest"
)

func testCommand(out *bytes.Buffer) *cobra.Command {
	cmd := &cobra.Command{}
	cmd.SetContext(context.Background())
	cmd.SetOut(out)
	return cmd
}

func testDataset(t *testing.T, opts shapefiletest.Options) *dataset.Service {
	t.Helper()
	path := shapefiletest.Write(t, t.TempDir(), shapefiletest.Pipes, opts)
	return dataset.New(dataset.Config{Path: path})
}

// getFreePort returns a free TCP port on localhost.
func getFreePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := l.Addr().(*net.TCPAddr).Port
	require.NoError(t, l.Close())
	return port
}

func TestRunServer_Lifecycle(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ds := testDataset(t, shapefiletest.Options{})
	port := getFreePort(t)
	srv := &http.Server{
		Addr:    fmt.Sprintf("127.0.0.1:%d", port),
		Handler: api.New(ds, api.Options{}).Handler(),
	}

	errCh := make(chan error, 1)
	go func() { errCh <- runServer(ctx, srv) }()

	url := fmt.Sprintf("http://127.0.0.1:%d/health", port)
	require.Eventually(t, func() bool {
		resp, err := http.Get(url) //nolint:gosec
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	cancel()

	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestRunServer_ListenError(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close() //nolint:errcheck

	srv := &http.Server{Addr: l.Addr().String(), Handler: http.NotFoundHandler()}
	err = runServer(context.Background(), srv)
	assert.Error(t, err)
}

func TestExportGeoJSON(t *testing.T) {
	ds := testDataset(t, shapefiletest.Options{EPSG: 3857})
	var buf bytes.Buffer

	require.NoError(t, exportGeoJSON(testCommand(&buf), ds, &buf))

	var fc struct {
		Features []json.RawMessage `json:"features"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &fc))
	assert.Len(t, fc.Features, 3)
}

func TestWriteArchive(t *testing.T) {
	ds := testDataset(t, shapefiletest.Options{})
	out := filepath.Join(t.TempDir(), "out.zip")

	require.NoError(t, writeArchive(testCommand(&bytes.Buffer{}), ds, out))

	zr, err := zip.OpenReader(out)
	require.NoError(t, err)
	defer zr.Close() //nolint:errcheck
	assert.Len(t, zr.File, 5)
}

func TestWriteArchive_MissingDatasetRemovesOutput(t *testing.T) {
	ds := dataset.New(dataset.Config{Path: filepath.Join(t.TempDir(), "absent.shp")})
	out := filepath.Join(t.TempDir(), "out.zip")

	require.Error(t, writeArchive(testCommand(&bytes.Buffer{}), ds, out))
	assert.NoFileExists(t, out)
}

func TestApplyUpdate(t *testing.T) {
	ds := testDataset(t, shapefiletest.Options{})
	var buf bytes.Buffer

	require.NoError(t, applyUpdate(testCommand(&buf), ds, "A2", "2018"))
	assert.Contains(t, buf.String(), "updated 1 feature(s) with id A2")

	c, err := ds.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "2018", c.Features[1].Values[1])

	err = applyUpdate(testCommand(&buf), ds, "missing", "2018")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no feature with id")
}

func TestCollectInfo(t *testing.T) {
	ds := testDataset(t, shapefiletest.Options{EPSG: 3857})

	info, err := collectInfo(testCommand(&bytes.Buffer{}), ds)
	require.NoError(t, err)

	assert.Equal(t, 3857, info.SourceCRS.Code)
	assert.Equal(t, model.KindLine, info.Kind)
	assert.Equal(t, 3, info.Features)
	assert.Zero(t, info.Nulls)
	assert.Len(t, info.Fields, 3)
	assert.Len(t, info.Files, 5)
	assert.InDelta(t, -80.20, info.Bounds.Min(0), 1e-6)
	assert.InDelta(t, 25.79, info.Bounds.Max(1), 1e-6)
}

func TestFormatInfo(t *testing.T) {
	info := datasetInfo{
		Path:      "data/pipes.shp",
		SourceCRS: crs.System{Code: 3857},
		Kind:      model.KindLine,
		Features:  2,
		Nulls:     1,
		Fields:    []model.Field{{Name: "Asset_ID", Type: model.FieldCharacter, Size: 10}},
		Bounds:    geom.NewBounds(geom.XY).Set(-1, -2, 3, 4),
		Files:     []string{"data/pipes.dbf", "data/pipes.shp"},
	}

	var buf bytes.Buffer
	formatInfo(&buf, info)

	out := buf.String()
	assert.Contains(t, out, "EPSG:3857 (served as EPSG:4326)")
	assert.Contains(t, out, "LineString")
	assert.Contains(t, out, "2 (1 without geometry)")
	assert.Contains(t, out, "-1.000000, -2.000000, 3.000000, 4.000000")
	assert.Contains(t, out, "Asset_ID")
	assert.Contains(t, out, "pipes.dbf")
}

func TestFormatInfo_EmptyExtent(t *testing.T) {
	var buf bytes.Buffer
	formatInfo(&buf, datasetInfo{Bounds: geom.NewBounds(geom.XY)})
	assert.Contains(t, buf.String(), "Extent:    -")
}
