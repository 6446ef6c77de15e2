package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/menta2k/img-frameright/internal/utils"
	"github.com/menta2k/img-frameright/pkg/geometry"
	"github.com/menta2k/img-frameright/pkg/regions"
)

// readRegions returns an image-regions value given inline or as a file path
func readRegions(value string) (string, []regions.Descriptor, error) {
	raw := strings.TrimSpace(value)
	if raw != "" && !strings.HasPrefix(raw, "[") {
		data, err := os.ReadFile(raw)
		if err != nil {
			return "", nil, fmt.Errorf("failed to read regions: %w", err)
		}
		raw = string(data)
	}

	descs, err := regions.ParseDescriptors(raw)
	if err != nil {
		return "", nil, err
	}
	return raw, descs, nil
}

// parseBoxes parses WxH values, each of which may itself be comma separated
func parseBoxes(values []string) ([]geometry.Size, error) {
	var boxes []geometry.Size
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if strings.TrimSpace(part) == "" {
				continue
			}
			size, err := geometry.ParseSize(part)
			if err != nil {
				return nil, err
			}
			boxes = append(boxes, size)
		}
	}
	if len(boxes) == 0 {
		return nil, fmt.Errorf("at least one box size is required")
	}
	return boxes, nil
}

// listInputs expands a directory into the images it holds
func listInputs(in string) ([]string, error) {
	if !utils.DirExists(in) {
		return []string{in}, nil
	}
	files, err := utils.ListImageFiles(in)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", in, err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no images found in %s", in)
	}
	return files, nil
}
