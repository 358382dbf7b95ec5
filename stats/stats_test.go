package stats

import (
	"sync"
	"testing"

	"ghostnet/model"

	. "github.com/smartystreets/goconvey/convey"
)

func TestAggregate(t *testing.T) {
	Convey("Given a fresh Aggregate", t, func() {
		a := New()

		Convey("Concurrent room creation and match-end recordings are all counted", func() {
			wg := sync.WaitGroup{}
			wg.Add(20)
			for i := 0; i < 10; i++ {
				go func() {
					defer wg.Done()
					a.RecordRoomCreated()
				}()
			}
			for i := 0; i < 10; i++ {
				go func(i int) {
					defer wg.Done()
					winner := model.WinnerGhosts
					if i%2 == 0 {
						winner = model.WinnerPacman
					}
					a.RecordMatchEnd(winner, 1000)
				}(i)
			}
			wg.Wait()

			snap := a.Snapshot()
			So(snap.RoomsCreated, ShouldEqual, 10)
			So(snap.MatchesPlayed, ShouldEqual, 10)
			So(snap.GhostsWins+snap.PacmanWins, ShouldEqual, 10)
			So(snap.AverageDurationMs, ShouldEqual, 1000)
		})
	})
}
