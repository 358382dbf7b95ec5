package pacman

import (
	"testing"

	"ghostnet/brains/defensive"
	"ghostnet/brains/hunter"
	"ghostnet/brains/tabular"
	"ghostnet/model"

	. "github.com/smartystreets/goconvey/convey"
)

type fakeDefensive struct{ called bool }

func (f *fakeDefensive) FindBestDirection(obs defensive.Observation) model.Direction {
	f.called = true
	return model.Up
}

type fakeHunter struct{ called bool }

func (f *fakeHunter) Decide(pacPos model.Position, currentFacing model.Direction, ghosts []hunter.Ghost) model.Direction {
	f.called = true
	return model.Down
}

type fakeTabular struct{ called bool }

func (f *fakeTabular) SelectAction(obs tabular.Observation, stepCount int, isWalkable func(model.Position) bool) model.Direction {
	f.called = true
	return model.Left
}

func TestDecidePrecedence(t *testing.T) {
	Convey("Given a controller with all three brains available", t, func() {
		def := &fakeDefensive{}
		hnt := &fakeHunter{}
		tab := &fakeTabular{}

		Convey("Tabular takes precedence whenever it is enabled", func() {
			c := New(def, hnt, tab)
			d := c.Decide(Tick{Mode: model.ModeFrightened, FrightenedRemainingMs: 5000})
			So(d, ShouldEqual, model.Left)
			So(tab.called, ShouldBeTrue)
			So(hnt.called, ShouldBeFalse)
		})

		Convey("Hunter takes over in frightened mode with time remaining when no tabular policy is installed", func() {
			c := New(def, hnt, nil)
			d := c.Decide(Tick{Mode: model.ModeFrightened, FrightenedRemainingMs: 5000})
			So(d, ShouldEqual, model.Down)
			So(hnt.called, ShouldBeTrue)
			So(def.called, ShouldBeFalse)
		})

		Convey("Defensive is used in chase mode", func() {
			c := New(def, hnt, nil)
			d := c.Decide(Tick{Mode: model.ModeChase})
			So(d, ShouldEqual, model.Up)
			So(def.called, ShouldBeTrue)
		})

		Convey("Defensive is used when frightened time is nearly expired", func() {
			c := New(def, hnt, nil)
			d := c.Decide(Tick{Mode: model.ModeFrightened, FrightenedRemainingMs: 500})
			So(d, ShouldEqual, model.Up)
			So(def.called, ShouldBeTrue)
			So(hnt.called, ShouldBeFalse)
		})

		Convey("DisableTabular reverts to heuristic brains without discarding the policy", func() {
			c := New(def, hnt, tab)
			c.DisableTabular()
			d := c.Decide(Tick{Mode: model.ModeChase})
			So(d, ShouldEqual, model.Up)
			So(tab.called, ShouldBeFalse)
		})
	})
}
