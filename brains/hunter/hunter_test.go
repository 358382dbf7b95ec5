package hunter

import (
	"testing"

	"ghostnet/maze"
	"ghostnet/model"

	. "github.com/smartystreets/goconvey/convey"
)

func corridor(t *testing.T) *maze.Maze {
	m, err := maze.Build([]string{
		"###########",
		"#.........#",
		"###########",
	}, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	return m
}

func TestDecide(t *testing.T) {
	Convey("Given a corridor with one frightened ghost ahead", t, func() {
		m := corridor(t)
		b := New(m, model.Position{X: 5, Y: 1})
		pac := model.Position{X: 1, Y: 1}
		ghosts := []Ghost{{Position: model.Position{X: 8, Y: 1}, Frightened: true}}

		Convey("It chases toward the ghost", func() {
			d := b.Decide(pac, model.Left, ghosts)
			So(d, ShouldEqual, model.Right)
		})
	})

	Convey("Given no frightened ghosts, only respawning ones", t, func() {
		m := corridor(t)
		housePos := model.Position{X: 5, Y: 1}
		b := New(m, housePos)
		pac := model.Position{X: 1, Y: 1}
		ghosts := []Ghost{{Position: model.Position{X: 8, Y: 1}, Frightened: false, Respawning: true}}

		Convey("It paths toward the ghost house", func() {
			d := b.Decide(pac, model.Left, ghosts)
			So(d, ShouldEqual, model.Right)
		})

		Convey("Once at the ghost house it keeps the current walkable facing", func() {
			d := b.Decide(housePos, model.Right, ghosts)
			So(d, ShouldEqual, model.Right)
		})
	})
}
