// Package svo reads and writes voxel tree snapshots.
//
// A snapshot is a zip archive with two gob encoded entries: meta.gob holds
// the format version, the build generation and summary counts while
// tree.gob holds the node pool and voxel attributes.
package svo

import (
	"bytes"
	"encoding/gob"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/achilleasa/voxelgi/asset"
	"github.com/achilleasa/voxelgi/log"
	"github.com/achilleasa/voxelgi/voxel"
	"github.com/achilleasa/voxelgi/voxel/traversal"
	"github.com/blang/semver"
	"github.com/google/uuid"
	"github.com/klauspost/compress/zip"
)

const (
	metaFile = "meta.gob"
	treeFile = "tree.gob"
)

// The snapshot format version written by this package. Snapshots with a
// different major version cannot be read.
var FormatVersion = semver.MustParse("1.0.0")

var (
	ErrIncompatibleVersion = errors.New("svo: incompatible snapshot version")
	ErrMissingEntry        = errors.New("svo: snapshot is missing a required entry")
	ErrCorrupt             = errors.New("svo: snapshot contents do not match its metadata")
)

var logger = log.New("svo")

// Snapshot metadata.
type Meta struct {
	Version    string
	Generation uuid.UUID
	Created    time.Time
	Volume     voxel.Volume
	Nodes      uint32
	Voxels     uint32
}

// Write a tree snapshot to a file.
func Write(filename string, tree *traversal.Tree, generation uuid.UUID) error {
	f, err := os.Create(filename)
	if err != nil {
		return err
	}

	err = Encode(f, tree, generation)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(filename)
		return err
	}

	logger.Noticef(`wrote snapshot %s to "%s"`, generation, filename)
	return nil
}

// Encode a tree snapshot into w.
func Encode(w io.Writer, tree *traversal.Tree, generation uuid.UUID) error {
	nodes, voxels := tree.Counts()
	meta := Meta{
		Version:    FormatVersion.String(),
		Generation: generation,
		Created:    time.Now().UTC(),
		Volume:     tree.Volume,
		Nodes:      nodes,
		Voxels:     voxels,
	}

	zw := zip.NewWriter(w)
	for _, entry := range []struct {
		name string
		data interface{}
	}{
		{metaFile, meta},
		{treeFile, tree},
	} {
		fw, err := zw.Create(entry.name)
		if err != nil {
			return err
		}
		if err = gob.NewEncoder(fw).Encode(entry.data); err != nil {
			return fmt.Errorf("svo: could not encode %s: %w", entry.name, err)
		}
	}
	return zw.Close()
}

// Read a tree snapshot from a resource.
func Read(res *asset.Resource) (*traversal.Tree, *Meta, error) {
	logger.Noticef(`loading snapshot from "%s"`, res.Path())
	start := time.Now()

	// zip package requires a reader implementing ReaderAt. To work around
	// this requirement we read the entire zip file into memory and create
	// a reader from the bytes package that implements ReaderAt
	data, err := io.ReadAll(res)
	if err != nil {
		return nil, nil, err
	}
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, nil, fmt.Errorf("svo: %w", err)
	}

	entries := make(map[string]*zip.File)
	for _, f := range zr.File {
		switch f.Name {
		case metaFile, treeFile:
			entries[f.Name] = f
		default:
			logger.Warningf("unknown file %s in snapshot; skipping", f.Name)
		}
	}

	// Check the version before decoding the tree.
	meta := &Meta{}
	if err = decodeEntry(entries, metaFile, meta); err != nil {
		return nil, nil, err
	}
	if err = checkVersion(meta.Version); err != nil {
		return nil, nil, err
	}

	tree := &traversal.Tree{}
	if err = decodeEntry(entries, treeFile, tree); err != nil {
		return nil, nil, err
	}
	if nodes, voxels := tree.Counts(); nodes != meta.Nodes || voxels != meta.Voxels {
		return nil, nil, fmt.Errorf("%w (nodes %d/%d, voxels %d/%d)", ErrCorrupt, nodes, meta.Nodes, voxels, meta.Voxels)
	}

	logger.Noticef("loaded snapshot %s (%d nodes, %d voxels) in %d ms", meta.Generation, meta.Nodes, meta.Voxels, time.Since(start).Nanoseconds()/1e6)
	return tree, meta, nil
}

func decodeEntry(entries map[string]*zip.File, name string, target interface{}) error {
	f, exists := entries[name]
	if !exists {
		return fmt.Errorf("%w: %s", ErrMissingEntry, name)
	}

	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	if err = gob.NewDecoder(rc).Decode(target); err != nil {
		return fmt.Errorf("svo: failed to load %s: %w", name, err)
	}
	return nil
}

func checkVersion(version string) error {
	ver, err := semver.Parse(version)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrIncompatibleVersion, err)
	}
	if ver.Major != FormatVersion.Major {
		return fmt.Errorf("%w: got %s; supported %d.x", ErrIncompatibleVersion, ver, FormatVersion.Major)
	}
	return nil
}
