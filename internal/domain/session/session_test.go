package session_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/listeval/internal/domain/session"
)

func TestRegistry(t *testing.T) {
	Convey("Given a new Registry", t, func() {
		ctx := context.Background()

		Convey("When storing a session", func() {
			r := session.NewRegistry()
			id := r.Put(ctx, &session.Session{Survey: "mos", Page: 2, Paged: true})

			Convey("Then it should get an id and be retrievable", func() {
				So(id, ShouldNotBeEmpty)
				So(r.Size(), ShouldEqual, 1)
				s, err := r.Get(ctx, id)
				So(err, ShouldBeNil)
				So(s.Survey, ShouldEqual, "mos")
				So(s.Created.IsZero(), ShouldBeFalse)
				So(s.Key("  alice "), ShouldResemble, s.Key("alice"))
				So(s.Key("alice").FileName("xlsx"), ShouldEqual, "alice_2.xlsx")
				So(s.Key("alice").RelPath("xlsx"), ShouldEqual, "mos/alice_2.xlsx")
			})
		})

		Convey("When taking a session", func() {
			r := session.NewRegistry()
			id := r.Put(ctx, &session.Session{Survey: "abx"})
			s, err := r.Take(ctx, id)

			Convey("Then it should be removed until put back", func() {
				So(err, ShouldBeNil)
				So(s.ID, ShouldEqual, id)
				_, err = r.Take(ctx, id)
				So(err, ShouldEqual, session.ErrNotFound)

				So(r.Put(ctx, s), ShouldEqual, id)
				_, err = r.Get(ctx, id)
				So(err, ShouldBeNil)
			})
		})

		Convey("When the registry is full", func() {
			r := session.NewRegistry(session.WithMaxSize(2))
			first := r.Put(ctx, &session.Session{})
			second := r.Put(ctx, &session.Session{})
			third := r.Put(ctx, &session.Session{})

			Convey("Then the oldest session should be evicted", func() {
				So(r.Size(), ShouldEqual, 2)
				_, err := r.Get(ctx, first)
				So(err, ShouldEqual, session.ErrNotFound)
				_, err = r.Get(ctx, second)
				So(err, ShouldBeNil)
				_, err = r.Get(ctx, third)
				So(err, ShouldBeNil)
			})
		})

		Convey("When a session outlives its ttl", func() {
			now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
			r := session.NewRegistry(
				session.WithTTL(time.Minute),
				session.WithClock(func() time.Time { return now }),
			)
			id := r.Put(ctx, &session.Session{})
			now = now.Add(2 * time.Minute)

			Convey("Then it should be gone", func() {
				_, err := r.Get(ctx, id)
				So(err, ShouldEqual, session.ErrNotFound)
				So(r.Size(), ShouldEqual, 0)
			})
		})

		Convey("When deleting", func() {
			r := session.NewRegistry()
			id := r.Put(ctx, &session.Session{})
			r.Delete(ctx, id)
			r.Delete(ctx, "unknown")

			Convey("Then the session should be gone", func() {
				So(r.Size(), ShouldEqual, 0)
			})
		})

		Convey("When many goroutines put and take concurrently", func() {
			r := session.NewRegistry(session.WithMaxSize(0))
			var wg sync.WaitGroup
			taken := make(chan string, 100)
			for i := 0; i < 100; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					id := r.Put(ctx, &session.Session{ID: fmt.Sprintf("s-%d", i)})
					if s, err := r.Take(ctx, id); err == nil {
						taken <- s.ID
					}
				}(i)
			}
			wg.Wait()
			close(taken)

			Convey("Then every session should be taken exactly once", func() {
				seen := map[string]bool{}
				for id := range taken {
					So(seen[id], ShouldBeFalse)
					seen[id] = true
				}
				So(len(seen), ShouldEqual, 100)
				So(r.Size(), ShouldEqual, 0)
			})
		})
	})
}
