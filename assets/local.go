package assets

import (
	"fmt"
	"os"
	"slices"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/bogband/website/util"
)

func localImages(dir string) (mapset.Set[string], error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("unable to read directory, %s, %w", dir, err)
	}

	files := mapset.NewSet[string]()
	for entry := range slices.Values(entries) {
		name := entry.Name()
		if entry.IsDir() || !util.IsSupportedImage(name) {
			continue
		}
		files.Add(name)
	}
	return files, nil
}

// LocalSlides lists the images in dir as slide paths under urlPrefix, in name order.
func LocalSlides(dir, urlPrefix string) ([]string, error) {
	files, err := localImages(dir)
	if err != nil {
		return nil, err
	}
	if !strings.HasSuffix(urlPrefix, "/") {
		urlPrefix += "/"
	}

	names := files.ToSlice()
	slices.Sort(names)
	paths := make([]string, len(names))
	for i, name := range names {
		paths[i] = urlPrefix + name
	}
	return paths, nil
}
