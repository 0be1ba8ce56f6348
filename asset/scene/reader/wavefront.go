package reader

import (
	"bufio"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/achilleasa/voxelgi/asset"
	"github.com/achilleasa/voxelgi/log"
	"github.com/achilleasa/voxelgi/scene"
	"github.com/achilleasa/voxelgi/types"
)

// Name of the material assigned to faces that do not select one.
const DefaultMaterialName = "default"

type wavefrontMaterial struct {
	scene.Material

	// True if this material is used by at least one face.
	used bool
}

type wavefrontSceneReader struct {
	logger log.Logger

	sc *scene.Scene

	// Parsed materials and a name to index lookup.
	materials      []*wavefrontMaterial
	matNameToIndex map[string]int

	// Index of the currently selected material or -1.
	curMaterial int

	// Vertex and normal lists shared by all included files.
	vertexList []types.Vec3
	normalList []types.Vec3

	// An error stack that provides additional error information when
	// scene files include other files (models, mat libs e.t.c)
	errStack []string
}

// Create a new wavefront scene reader.
func newWavefrontReader() *wavefrontSceneReader {
	return &wavefrontSceneReader{
		logger:         log.New("wavefront scene reader"),
		sc:             &scene.Scene{},
		matNameToIndex: make(map[string]int),
		curMaterial:    -1,
	}
}

// Read scene definition.
func (r *wavefrontSceneReader) Read(sceneRes *asset.Resource) (*scene.Scene, error) {
	r.logger.Noticef(`parsing scene from "%s"`, sceneRes.Path())
	start := time.Now()

	if err := r.parse(sceneRes); err != nil {
		return nil, err
	}

	// If no mesh instances are defined, create instances for each defined mesh
	if len(r.sc.Instances) == 0 {
		for meshIndex := range r.sc.Meshes {
			r.sc.Instances = append(r.sc.Instances, scene.Instance{Mesh: meshIndex, Transform: types.Ident4()})
		}
	}

	r.pruneMaterials()

	r.logger.Noticef("parsed scene in %d ms", time.Since(start).Nanoseconds()/1e6)
	return r.sc, nil
}

// Copy used materials into the scene and remap triangle material indices.
func (r *wavefrontSceneReader) pruneMaterials() {
	remap := make([]int, len(r.materials))
	for wfIndex, wfMat := range r.materials {
		if !wfMat.used {
			r.logger.Infof("skipping unused material %q", wfMat.Name)
			continue
		}
		r.sc.Materials = append(r.sc.Materials, wfMat.Material)
		remap[wfIndex] = len(r.sc.Materials) - 1
	}

	for meshIndex := range r.sc.Meshes {
		tris := r.sc.Meshes[meshIndex].Triangles
		for triIndex := range tris {
			tris[triIndex].Material = remap[tris[triIndex].Material]
		}
	}

	if pruned := len(r.materials) - len(r.sc.Materials); pruned > 0 {
		r.logger.Noticef("pruned %d unused materials", pruned)
	}
}

// Generate an error message that also includes any data in the error stack.
func (r *wavefrontSceneReader) emitError(file string, line int, msgFormat string, args ...interface{}) error {
	msg := fmt.Sprintf(msgFormat, args...)

	var errMsg string
	if file != "" {
		errMsg = fmt.Sprintf("[%s: %d] error: %s\n%s", file, line, msg, strings.Join(r.errStack, "\n"))
	} else {
		errMsg = fmt.Sprintf("error: %s\n%s", msg, strings.Join(r.errStack, "\n"))
	}

	return fmt.Errorf("%s", strings.Trim(errMsg, "\n"))
}

// Push a frame to the error stack.
func (r *wavefrontSceneReader) pushFrame(msg string) {
	r.errStack = append([]string{msg}, r.errStack...)
}

// Pop a frame from the error stack.
func (r *wavefrontSceneReader) popFrame() {
	r.errStack = r.errStack[1:]
}

// Get the index of the default material, creating it if needed.
func (r *wavefrontSceneReader) defaultMaterial() int {
	matIndex, exists := r.matNameToIndex[DefaultMaterialName]
	if !exists {
		r.materials = append(r.materials, &wavefrontMaterial{
			Material: scene.Material{
				Name:      DefaultMaterialName,
				Albedo:    types.Vec3{0.7, 0.7, 0.7},
				Roughness: 1,
			},
		})
		matIndex = len(r.materials) - 1
		r.matNameToIndex[DefaultMaterialName] = matIndex
	}
	return matIndex
}

// Parse wavefront object scene format.
func (r *wavefrontSceneReader) parse(res *asset.Resource) error {
	var lineNum int

	// The main obj file may include (call) several other object files. Each
	// object file contains 1-based indices (when they are positive). By
	// tracking the current vertex/normal offsets we can apply them
	// while parsing faces to select the correct coordinates.
	relVertexOffset := len(r.vertexList)
	relNormalOffset := len(r.normalList)

	scanner := bufio.NewScanner(res)
	for scanner.Scan() {
		lineNum++
		lineTokens := strings.Fields(scanner.Text())
		if len(lineTokens) == 0 || strings.HasPrefix(lineTokens[0], "#") {
			continue
		}

		switch lineTokens[0] {
		case "call", "mtllib":
			if len(lineTokens) != 2 {
				return r.emitError(res.Path(), lineNum, `unsupported syntax for "%s"; expected 1 argument; got %d`, lineTokens[0], len(lineTokens)-1)
			}

			r.pushFrame(fmt.Sprintf("referenced from %s:%d [%s]", res.Path(), lineNum, lineTokens[0]))
			if err := r.parseInclude(lineTokens[0], lineTokens[1], res); err != nil {
				return err
			}
			r.popFrame()
		case "usemtl":
			if len(lineTokens) != 2 {
				return r.emitError(res.Path(), lineNum, `unsupported syntax for "usemtl"; expected 1 argument; got %d`, len(lineTokens)-1)
			}

			matIndex, exists := r.matNameToIndex[lineTokens[1]]
			if !exists {
				return r.emitError(res.Path(), lineNum, `undefined material with name "%s"`, lineTokens[1])
			}
			r.curMaterial = matIndex
		case "v", "vn":
			v, err := parseVec3(lineTokens)
			if err != nil {
				return r.emitError(res.Path(), lineNum, err.Error())
			}
			if lineTokens[0] == "v" {
				r.vertexList = append(r.vertexList, v)
			} else {
				r.normalList = append(r.normalList, v)
			}
		case "g", "o":
			if len(lineTokens) < 2 {
				return r.emitError(res.Path(), lineNum, `unsupported syntax for "%s"; expected 1 argument for object name; got %d`, lineTokens[0], len(lineTokens)-1)
			}

			r.dropEmptyMesh()
			r.sc.Meshes = append(r.sc.Meshes, scene.Mesh{Name: lineTokens[1]})
		case "f":
			tris, err := r.parseFace(lineTokens, relVertexOffset, relNormalOffset)
			if err != nil {
				return r.emitError(res.Path(), lineNum, err.Error())
			}

			// If no object has been defined create a default one
			if len(r.sc.Meshes) == 0 {
				r.sc.Meshes = append(r.sc.Meshes, scene.Mesh{Name: "default"})
			}
			mesh := &r.sc.Meshes[len(r.sc.Meshes)-1]
			mesh.Triangles = append(mesh.Triangles, tris...)
		case "instance":
			inst, err := r.parseMeshInstance(lineTokens)
			if err != nil {
				return r.emitError(res.Path(), lineNum, err.Error())
			}
			r.sc.Instances = append(r.sc.Instances, inst)
		}
	}

	if err := scanner.Err(); err != nil {
		return r.emitError(res.Path(), lineNum, err.Error())
	}

	r.dropEmptyMesh()
	return nil
}

// Parse an included object file or material library.
func (r *wavefrontSceneReader) parseInclude(directive, target string, parent *asset.Resource) error {
	incRes, err := asset.NewResource(target, parent)
	if err != nil {
		return r.emitError("", 0, err.Error())
	}
	defer incRes.Close()

	if directive == "call" {
		return r.parse(incRes)
	}
	return r.parseMaterials(incRes)
}

// Drop the last parsed mesh if it contains no triangles.
func (r *wavefrontSceneReader) dropEmptyMesh() {
	lastMeshIndex := len(r.sc.Meshes) - 1
	if lastMeshIndex >= 0 && len(r.sc.Meshes[lastMeshIndex].Triangles) == 0 {
		r.logger.Warningf(`dropping mesh "%s" as it contains no polygons`, r.sc.Meshes[lastMeshIndex].Name)
		r.sc.Meshes = r.sc.Meshes[:lastMeshIndex]
	}
}

// Parse mesh instance definition. Definitions use the following format:
// instance mesh_name tX tY tZ yaw pitch roll sX sY sZ
// where:
// - tX, tY, tZ       : translation vector
// - yaw, pitch, roll : rotation angles in degrees
// - sX, sY, sZ	      : scale
//
// The instance transform applies scale, then rotation, then translation.
func (r *wavefrontSceneReader) parseMeshInstance(lineTokens []string) (scene.Instance, error) {
	if len(lineTokens) != 11 {
		return scene.Instance{}, fmt.Errorf(`unsupported syntax for "instance"; expected 10 arguments: mesh_name tX tY tZ yaw pitch roll sX sY sZ; got %d`, len(lineTokens)-1)
	}

	meshName := lineTokens[1]
	meshIndex := -1
	for index, mesh := range r.sc.Meshes {
		if mesh.Name == meshName {
			meshIndex = index
			break
		}
	}
	if meshIndex == -1 {
		return scene.Instance{}, fmt.Errorf(`unknown mesh with name "%s"`, meshName)
	}

	var args [9]float32
	for index := range args {
		v, err := strconv.ParseFloat(lineTokens[index+2], 32)
		if err != nil {
			return scene.Instance{}, err
		}
		args[index] = float32(v)
	}

	translation := types.Vec3{args[0], args[1], args[2]}
	scale := types.Vec3{args[6], args[7], args[8]}
	rot := types.QuatFromEuler(
		args[3]*math.Pi/180,
		args[4]*math.Pi/180,
		args[5]*math.Pi/180,
	)

	// M = T * R * S
	transform := types.Translate4(translation).Mul4(rot.Mat4().Mul4(types.Scale4(scale)))
	return scene.Instance{Mesh: meshIndex, Transform: transform}, nil
}

// Parse face definition. Each face definitions consists of 3 or 4 arguments,
// one for each vertex. Each one of the vertex arguments is comprised of
// 1, 2 or 3 args separated by a slash character. The following formats are
// supported:
// - vertexIndex
// - vertexIndex/uvIndex
// - vertexIndex//normalIndex
// - vertexIndex/uvIndex/normalIndex
//
// Indices start from 1 and may be negative to indicate an offset off the
// end of the vertex/normal list. UV indices are accepted but ignored.
// Quads are split into two triangles.
func (r *wavefrontSceneReader) parseFace(lineTokens []string, relVertexOffset, relNormalOffset int) ([]scene.Triangle, error) {
	if len(lineTokens) < 4 || len(lineTokens) > 5 {
		return nil, fmt.Errorf(`unsupported syntax for "f"; expected 3 arguments for triangular face or 4 arguments for a quad face; got %d. Select the triangulation option in your exporter`, len(lineTokens)-1)
	}

	var vertices [4]types.Vec3
	var normals [4]types.Vec3
	expIndices := 0
	hasNormals := false
	for arg := 0; arg < len(lineTokens)-1; arg++ {
		vTokens := strings.Split(lineTokens[arg+1], "/")

		// The first arg defines the format for the following args
		if arg == 0 {
			expIndices = len(vTokens)
		} else if len(vTokens) != expIndices {
			return nil, fmt.Errorf("expected each face argument to contain %d indices; arg %d contains %d indices", expIndices, arg, len(vTokens))
		}

		if vTokens[0] == "" {
			return nil, fmt.Errorf("face argument %d does not include a vertex index", arg)
		}

		offset, err := selectFaceCoordIndex(vTokens[0], len(r.vertexList), relVertexOffset)
		if err != nil {
			return nil, fmt.Errorf("could not parse vertex coord for face argument %d: %s", arg, err.Error())
		}
		vertices[arg] = r.vertexList[offset]

		if expIndices > 2 && vTokens[2] != "" {
			offset, err = selectFaceCoordIndex(vTokens[2], len(r.normalList), relNormalOffset)
			if err != nil {
				return nil, fmt.Errorf("could not parse normal coord for face argument %d: %s", arg, err.Error())
			}
			normals[arg] = r.normalList[offset]
			hasNormals = true
		}
	}

	if r.curMaterial == -1 {
		r.curMaterial = r.defaultMaterial()
	}
	r.materials[r.curMaterial].used = true

	// If no normals are available generate them from the vertices
	if !hasNormals {
		faceNormal := vertices[1].Sub(vertices[0]).Cross(vertices[2].Sub(vertices[0])).Normalize()
		normals = [4]types.Vec3{faceNormal, faceNormal, faceNormal, faceNormal}
	}

	indiceList := [][3]int{{0, 1, 2}}
	if len(lineTokens) == 5 {
		indiceList = append(indiceList, [3]int{0, 2, 3})
	}

	tris := make([]scene.Triangle, len(indiceList))
	for triIndex, indices := range indiceList {
		for vertIndex, selectIndex := range indices {
			tris[triIndex].Vertices[vertIndex] = vertices[selectIndex]
			tris[triIndex].Normals[vertIndex] = normals[selectIndex]
		}
		tris[triIndex].Material = r.curMaterial
	}

	return tris, nil
}

// Parse a wavefront material library. Supported directives:
// - newmtl name   : start a new material
// - include name  : copy all properties of a previously defined material
// - Kd r g b      : albedo
// - Pr value      : roughness
// - Pm value      : metallic
func (r *wavefrontSceneReader) parseMaterials(res *asset.Resource) error {
	var lineNum int
	var err error

	r.logger.Infof(`parsing material library "%s"`, res.Path())

	scanner := bufio.NewScanner(res)

	var curMaterial *wavefrontMaterial
	var matName string

	for scanner.Scan() {
		lineNum++
		lineTokens := strings.Fields(scanner.Text())
		if len(lineTokens) == 0 || strings.HasPrefix(lineTokens[0], "#") {
			continue
		}

		if lineTokens[0] == "newmtl" {
			if len(lineTokens) != 2 {
				return r.emitError(res.Path(), lineNum, `unsupported syntax for "newmtl"; expected 1 argument; got %d`, len(lineTokens)-1)
			}

			matName = lineTokens[1]
			if _, exists := r.matNameToIndex[matName]; exists {
				return r.emitError(res.Path(), lineNum, `material "%s" already defined`, matName)
			}

			curMaterial = &wavefrontMaterial{Material: scene.Material{Name: matName, Roughness: 1}}
			r.materials = append(r.materials, curMaterial)
			r.matNameToIndex[matName] = len(r.materials) - 1
			continue
		}

		if curMaterial == nil {
			return r.emitError(res.Path(), lineNum, `got "%s" without a "newmtl"`, lineTokens[0])
		}

		switch lineTokens[0] {
		case "include":
			if len(lineTokens) < 2 {
				return r.emitError(res.Path(), lineNum, `unsupported syntax for "%s"; expected 1 argument; got %d`, lineTokens[0], len(lineTokens)-1)
			}

			baseMaterialIndex, exists := r.matNameToIndex[lineTokens[1]]
			if !exists {
				return r.emitError(res.Path(), lineNum, `could not include unknown material "%s"`, lineTokens[1])
			}

			// Overwrite material but keep the original name
			curMaterial.Material = r.materials[baseMaterialIndex].Material
			curMaterial.Name = matName
		case "Kd":
			curMaterial.Albedo, err = parseVec3(lineTokens)
		case "Pr":
			curMaterial.Roughness, err = parseFloat32(lineTokens)
		case "Pm":
			curMaterial.Metallic, err = parseFloat32(lineTokens)
		}

		if err != nil {
			return r.emitError(res.Path(), lineNum, err.Error())
		}
	}

	return scanner.Err()
}

// Given an index for a face coord type (vertex, normal) calculate the
// proper offset into the coord list. Wavefront format can also use negative
// indices to reference elements from the end of the coord list.
func selectFaceCoordIndex(indexToken string, coordListLen int, relOffset int) (int, error) {
	index, err := strconv.ParseInt(indexToken, 10, 32)
	if err != nil {
		return -1, err
	}

	var offset int
	if index < 0 {
		offset = coordListLen + int(index)
	} else {
		offset = relOffset + int(index-1)
	}
	if offset < 0 || offset >= coordListLen {
		return -1, fmt.Errorf("index out of bounds")
	}
	return offset, nil
}

// Parse a float scalar value.
func parseFloat32(lineTokens []string) (float32, error) {
	if len(lineTokens) < 2 {
		return 0, fmt.Errorf(`unsupported syntax for "%s"; expected 1 argument; got %d`, lineTokens[0], len(lineTokens)-1)
	}

	val, err := strconv.ParseFloat(lineTokens[1], 32)
	if err != nil {
		return 0, err
	}

	return float32(val), nil
}

// Parse a Vec3 row.
func parseVec3(lineTokens []string) (types.Vec3, error) {
	if len(lineTokens) < 4 {
		return types.Vec3{}, fmt.Errorf(`unsupported syntax for "%s"; expected 3 arguments; got %d`, lineTokens[0], len(lineTokens)-1)
	}

	v := types.Vec3{}
	for tokIdx := 1; tokIdx <= 3; tokIdx++ {
		coord, err := strconv.ParseFloat(lineTokens[tokIdx], 32)
		if err != nil {
			return v, err
		}
		v[tokIdx-1] = float32(coord)
	}
	return v, nil
}
