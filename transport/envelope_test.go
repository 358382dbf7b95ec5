package transport

import (
	"testing"

	"ghostnet/model"
	"ghostnet/room"

	. "github.com/smartystreets/goconvey/convey"
)

func TestParseDirection(t *testing.T) {
	Convey("Given the four wire direction strings", t, func() {
		cases := map[string]model.Direction{
			"UP":    model.Up,
			"DOWN":  model.Down,
			"LEFT":  model.Left,
			"RIGHT": model.Right,
		}
		for wire, want := range cases {
			d, ok := ParseDirection(wire)
			So(ok, ShouldBeTrue)
			So(d, ShouldEqual, want)
		}

		Convey("An unrecognized value reports false along with the zero direction, None", func() {
			d, ok := ParseDirection("SIDEWAYS")
			So(ok, ShouldBeFalse)
			So(d, ShouldEqual, model.None)
		})
	})
}

func TestEnvelopeFor(t *testing.T) {
	Convey("Given the room frame types", t, func() {
		Convey("FullState wraps as gameState", func() {
			e := envelopeFor(room.FullState{RoomCode: "ABCD"})
			So(e.Type, ShouldEqual, OutboundGameState)
		})

		Convey("DeltaFrame wraps as gameUpdate", func() {
			e := envelopeFor(room.DeltaFrame{})
			So(e.Type, ShouldEqual, OutboundGameUpdate)
		})

		Convey("GameOverFrame wraps as gameOver", func() {
			e := envelopeFor(room.GameOverFrame{Winner: model.WinnerPacman})
			So(e.Type, ShouldEqual, OutboundGameOver)
		})

		Convey("TimerFrame wraps as timerUpdate", func() {
			e := envelopeFor(room.TimerFrame{TimeRemainingMs: 1000})
			So(e.Type, ShouldEqual, OutboundTimerUpdate)
		})

		Convey("An already-wrapped OutboundMessage passes through unchanged", func() {
			msg := OutboundMessage{Type: OutboundGameStarted}
			e := envelopeFor(msg)
			So(e.Type, ShouldEqual, OutboundGameStarted)
		})
	})
}
