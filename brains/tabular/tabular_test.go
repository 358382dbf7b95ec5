package tabular

import (
	"os"
	"path/filepath"
	"testing"

	"ghostnet/model"

	. "github.com/smartystreets/goconvey/convey"
)

const sampleModel = `
alpha: 0.1
gamma: 0.9
totalActions: 4
explorationModeChanged: false
entries:
  - positionKey: "5,5"
    valueTable:
      - stateKey: "3,3,RIGHT"
        q: [0.0, 0.0, 0.0, 10.0]
`

func writeSample(t *testing.T) string {
	dir := t.TempDir()
	path := filepath.Join(dir, "model.yaml")
	if err := os.WriteFile(path, []byte(sampleModel), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	Convey("Given a well-formed model file", t, func() {
		path := writeSample(t)
		pol, err := Load(path, DefaultAggregationWeights())
		So(err, ShouldBeNil)

		Convey("Its training metadata is preserved", func() {
			So(pol.Alpha(), ShouldEqual, 0.1)
			So(pol.Gamma(), ShouldEqual, 0.9)
			So(pol.TotalActions(), ShouldEqual, 4)
		})

		Convey("An unseen target contributes the zero vector rather than erroring", func() {
			always := func(model.Position) bool { return true }
			obs := Observation{
				PacmanPosition: model.Position{X: 3, Y: 3},
				PacmanFacing:   model.Right,
				Dots:           []model.Position{{X: 99, Y: 99}},
			}
			d := pol.SelectAction(obs, 0, always)
			So(d, ShouldNotEqual, model.None)
		})

		Convey("A dot target pulls the action toward its highest q value", func() {
			always := func(model.Position) bool { return true }
			obs := Observation{
				PacmanPosition: model.Position{X: 3, Y: 3},
				PacmanFacing:   model.Right,
				Dots:           []model.Position{{X: 5, Y: 5}},
			}
			d := pol.SelectAction(obs, 0, always)
			So(d, ShouldEqual, model.Right)
		})

		Convey("Unwalkable actions are excluded from the argmax", func() {
			onlyLeft := func(p model.Position) bool { return p == model.Position{X: 2, Y: 3} }
			obs := Observation{
				PacmanPosition: model.Position{X: 3, Y: 3},
				PacmanFacing:   model.Right,
				Dots:           []model.Position{{X: 5, Y: 5}},
			}
			d := pol.SelectAction(obs, 0, onlyLeft)
			So(d, ShouldEqual, model.Left)
		})
	})
}
