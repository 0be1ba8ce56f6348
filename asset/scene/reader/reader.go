package reader

import (
	"fmt"

	"github.com/achilleasa/voxelgi/asset"
	"github.com/achilleasa/voxelgi/scene"
)

// The Reader interface is implemented by all scene readers.
type Reader interface {
	// Read scene definition from a resource.
	Read(*asset.Resource) (*scene.Scene, error)
}

// Read scene from a local file or URL.
func ReadScene(filename string) (*scene.Scene, error) {
	res, err := asset.NewResource(filename, nil)
	if err != nil {
		return nil, err
	}
	defer res.Close()

	return Read(res)
}

// Read scene from a resource. The reader is selected by the resource extension.
func Read(res *asset.Resource) (*scene.Scene, error) {
	var reader Reader
	switch res.Ext() {
	case ".obj":
		reader = newWavefrontReader()
	default:
		return nil, fmt.Errorf("reader: unsupported scene format %q", res.Ext())
	}

	sc, err := reader.Read(res)
	if err != nil {
		return nil, err
	}
	if err = sc.Validate(); err != nil {
		return nil, err
	}
	return sc, nil
}
