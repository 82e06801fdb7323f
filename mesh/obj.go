package mesh

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/g3n/engine/loader/obj"
	"github.com/go-gl/mathgl/mgl32"
)

var defaultColor = mgl32.Vec3{1, 1, 1}

// LoadOBJ reads a Wavefront OBJ file. If mtlPath is empty, the .mtl file
// next to the model is used when it exists.
func LoadOBJ(objPath, mtlPath string) (*Mesh, error) {
	meshFile, err := os.Open(objPath)
	if err != nil {
		return nil, errors.Wrap(err, "open mesh")
	}
	defer meshFile.Close()

	if mtlPath == "" {
		mtlPath = strings.TrimSuffix(objPath, filepath.Ext(objPath)) + ".mtl"
	}

	var matReader io.Reader = strings.NewReader("")
	matFile, err := os.Open(mtlPath)
	if err == nil {
		defer matFile.Close()
		matReader = matFile
	} else if !os.IsNotExist(err) {
		return nil, errors.Wrap(err, "open material library")
	}

	m, err := DecodeOBJ(meshFile, matReader)
	if err != nil {
		return nil, errors.Wrapf(err, "load %s", objPath)
	}
	m.Name = filepath.Base(objPath)
	return m, nil
}

// DecodeOBJ triangulates every face of every object into a flat vertex
// list. Each vertex takes the diffuse colour of its face's material.
func DecodeOBJ(meshReader, matReader io.Reader) (*Mesh, error) {
	decoder, err := obj.DecodeReader(meshReader, matReader)
	if err != nil {
		return nil, errors.Wrap(err, "decode obj")
	}

	m := &Mesh{}
	for _, decodedObj := range decoder.Objects {
		for _, face := range decodedObj.Faces {
			color := faceColor(decoder, face)

			// Fan out polygons into triangles
			for i := 2; i < len(face.Vertices); i++ {
				for _, corner := range []int{0, i - 1, i} {
					vert, err := vertexAt(decoder, face, corner, color)
					if err != nil {
						return nil, err
					}
					m.Vertices = append(m.Vertices, vert)
				}
			}
		}
	}

	if len(m.Vertices) == 0 {
		return nil, errors.New("obj contains no faces")
	}
	return m, nil
}

func faceColor(decoder *obj.Decoder, face obj.Face) mgl32.Vec3 {
	material, ok := decoder.Materials[face.Material]
	if !ok || material == nil {
		return defaultColor
	}
	return mgl32.Vec3{material.Diffuse.R, material.Diffuse.G, material.Diffuse.B}
}

func vertexAt(decoder *obj.Decoder, face obj.Face, corner int, color mgl32.Vec3) (Vertex, error) {
	vertInd := face.Vertices[corner]
	if vertInd < 0 || vertInd*3+2 >= len(decoder.Vertices) {
		return Vertex{}, errors.Newf("face references vertex %d of %d", vertInd, len(decoder.Vertices)/3)
	}

	return Vertex{
		Position: mgl32.Vec3{
			decoder.Vertices[vertInd*3],
			decoder.Vertices[vertInd*3+1],
			decoder.Vertices[vertInd*3+2],
		},
		Color: color,
	}, nil
}
