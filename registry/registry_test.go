package registry_test

import (
	"errors"
	"testing"
	"time"

	"ghostnet/config"
	"ghostnet/maze"
	"ghostnet/model"
	"ghostnet/registry"
	"ghostnet/stats"

	. "github.com/smartystreets/goconvey/convey"
)

type recordingDirectory struct {
	published   []registry.DirectoryEntry
	unpublished []string
}

func (d *recordingDirectory) Publish(entry registry.DirectoryEntry) error {
	d.published = append(d.published, entry)
	return nil
}

func (d *recordingDirectory) Unpublish(code string) error {
	d.unpublished = append(d.unpublished, code)
	return nil
}

func fastRegistryConfig() *config.Config {
	cfg := config.Default()
	cfg.TickPeriodMs = 5
	cfg.MatchDurationMs = 50000
	cfg.RoomTTLMs = 40 // exercised by TestRoomTTLForceTeardown
	return cfg
}

func awaitCondition(timeout time.Duration, fn func() bool) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if fn() {
			return true
		}
		time.Sleep(2 * time.Millisecond)
	}
	return fn()
}

func TestCreateAndJoinRoom(t *testing.T) {
	Convey("Given a registry bound to the reference maze", t, func() {
		m := maze.MustReference()
		dir := &recordingDirectory{}
		reg := registry.New(m, fastRegistryConfig(), stats.New(), dir, "instance-1")

		Convey("CreateRoom allocates a unique 4-character code and an active room", func() {
			code, err := reg.CreateRoom()
			So(err, ShouldBeNil)
			So(len(code), ShouldEqual, 4)
			So(reg.RoomCount(), ShouldEqual, 1)

			_, ok := reg.Lookup(code)
			So(ok, ShouldBeTrue)

			Convey("and publishes the room to the directory", func() {
				ok := awaitCondition(200*time.Millisecond, func() bool {
					return len(dir.published) == 1
				})
				So(ok, ShouldBeTrue)
				So(dir.published[0].RoomCode, ShouldEqual, code)
				So(dir.published[0].InstanceID, ShouldEqual, "instance-1")
			})
		})

		Convey("JoinRoom seats a player and indexes their connection", func() {
			code, err := reg.CreateRoom()
			So(err, ShouldBeNil)

			p, err := reg.JoinRoom(code, "conn-1", "Alice", model.Blinky)
			So(err, ShouldBeNil)
			So(p.Ghost, ShouldEqual, model.Blinky)

			gr, ok := reg.RoomForConnection("conn-1")
			So(ok, ShouldBeTrue)
			So(gr.Code, ShouldEqual, code)
		})

		Convey("JoinRoom on an unknown code reports RoomNotFound", func() {
			_, err := reg.JoinRoom("ZZZZ", "conn-1", "Alice", model.Blinky)
			So(errors.Is(err, registry.ErrRoomNotFound), ShouldBeTrue)
		})

		Convey("HandleDisconnect removes the player from its room and the index", func() {
			code, err := reg.CreateRoom()
			So(err, ShouldBeNil)
			_, err = reg.JoinRoom(code, "conn-1", "Alice", model.Blinky)
			So(err, ShouldBeNil)

			reg.HandleDisconnect("conn-1")

			_, ok := reg.RoomForConnection("conn-1")
			So(ok, ShouldBeFalse)
		})
	})
}

func TestRoomTTLForceTeardown(t *testing.T) {
	Convey("Given a registry with a very short room TTL", t, func() {
		m := maze.MustReference()
		dir := &recordingDirectory{}
		reg := registry.New(m, fastRegistryConfig(), stats.New(), dir, "instance-1")

		code, err := reg.CreateRoom()
		So(err, ShouldBeNil)

		Convey("the room is force-stopped and removed once the TTL elapses", func() {
			ok := awaitCondition(2*time.Second, func() bool {
				_, stillThere := reg.Lookup(code)
				return !stillThere
			})
			So(ok, ShouldBeTrue)
			So(reg.RoomCount(), ShouldEqual, 0)

			Convey("and the directory entry is unpublished", func() {
				ok := awaitCondition(200*time.Millisecond, func() bool {
					return len(dir.unpublished) == 1
				})
				So(ok, ShouldBeTrue)
				So(dir.unpublished[0], ShouldEqual, code)
			})
		})
	})
}

func TestNopDirectoryIsDefault(t *testing.T) {
	Convey("Given a registry constructed with a nil directory", t, func() {
		m := maze.MustReference()
		reg := registry.New(m, fastRegistryConfig(), stats.New(), nil, "instance-1")

		Convey("room creation still succeeds", func() {
			_, err := reg.CreateRoom()
			So(err, ShouldBeNil)
		})
	})
}
