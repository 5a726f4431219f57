package shapefile

import (
	"archive/zip"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
)

// Sidecars lists the files that make up the dataset at shpPath: every regular
// file in its folder named "<base>" or "<base>.<ext>" (including compound
// extensions such as ".shp.xml"). Paths are returned sorted.
func Sidecars(shpPath string) ([]string, error) {
	dir := filepath.Dir(shpPath)
	base := filepath.Base(basePath(shpPath))

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, eris.Wrap(err, "shapefile: read dataset folder")
	}

	var files []string
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		name := e.Name()
		if name == base || strings.HasPrefix(name, base+".") {
			files = append(files, filepath.Join(dir, name))
		}
	}
	sort.Strings(files)

	if len(files) == 0 {
		return nil, eris.Errorf("shapefile: no files named %s in %s", base, dir)
	}
	return files, nil
}

// WriteZip writes the given files into a ZIP archive on w, each stored under
// its base name.
func WriteZip(w io.Writer, files []string) error {
	zw := zip.NewWriter(w)
	for _, path := range files {
		if err := addZipEntry(zw, path); err != nil {
			_ = zw.Close()
			return err
		}
	}
	if err := zw.Close(); err != nil {
		return eris.Wrap(err, "shapefile: finish zip")
	}
	return nil
}

func addZipEntry(zw *zip.Writer, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return eris.Wrapf(err, "shapefile: open %s", path)
	}
	defer f.Close() //nolint:errcheck

	info, err := f.Stat()
	if err != nil {
		return eris.Wrapf(err, "shapefile: stat %s", path)
	}
	hdr, err := zip.FileInfoHeader(info)
	if err != nil {
		return eris.Wrapf(err, "shapefile: zip header %s", path)
	}
	hdr.Name = filepath.Base(path)
	hdr.Method = zip.Deflate

	out, err := zw.CreateHeader(hdr)
	if err != nil {
		return eris.Wrapf(err, "shapefile: zip entry %s", path)
	}
	if _, err := io.Copy(out, f); err != nil {
		return eris.Wrapf(err, "shapefile: zip %s", path)
	}
	return nil
}
