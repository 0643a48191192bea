package corpus_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/okian/duel/internal/corpus"
	"github.com/okian/duel/internal/domain/model"
	"github.com/smartystreets/goconvey/convey"
)

func TestRead(t *testing.T) {
	convey.Convey("Given a phrase list with blanks and repeats", t, func() {
		input := "synergy\n\n  move the needle  \nsynergy\r\n\t\nboil the ocean\n"

		items, err := corpus.Read(strings.NewReader(input), 1500)

		convey.Convey("Then each distinct phrase becomes one item", func() {
			convey.So(err, convey.ShouldBeNil)
			convey.So(len(items), convey.ShouldEqual, 3)
			convey.So(items[0].Text, convey.ShouldEqual, "synergy")
			convey.So(items[1].Text, convey.ShouldEqual, "move the needle")
			convey.So(items[2].Text, convey.ShouldEqual, "boil the ocean")
			for _, it := range items {
				convey.So(it.Rating, convey.ShouldEqual, 1500)
				convey.So(it.ID, convey.ShouldEqual, model.ItemID(it.Text))
			}
		})
	})

	convey.Convey("Given an input with only blank lines", t, func() {
		_, err := corpus.Read(strings.NewReader("\n \n"), 1500)

		convey.Convey("Then it is rejected as empty", func() {
			convey.So(errors.Is(err, corpus.ErrEmpty), convey.ShouldBeTrue)
		})
	})
}

func TestLoad(t *testing.T) {
	convey.Convey("Given a corpus file", t, func() {
		path := filepath.Join(t.TempDir(), "phrases.txt")
		convey.So(os.WriteFile(path, []byte("alpha\nbeta\n"), 0o600), convey.ShouldBeNil)

		convey.Convey("When it is loaded twice", func() {
			a, errA := corpus.Load(context.Background(), path, 1000)
			b, errB := corpus.Load(context.Background(), path, 1000)

			convey.Convey("Then ids are stable across loads", func() {
				convey.So(errA, convey.ShouldBeNil)
				convey.So(errB, convey.ShouldBeNil)
				convey.So(a, convey.ShouldResemble, b)
				convey.So(a[0].Rating, convey.ShouldEqual, 1000)
			})
		})

		convey.Convey("When the file does not exist", func() {
			_, err := corpus.Load(context.Background(), path+".missing", 1500)
			convey.So(err, convey.ShouldNotBeNil)
		})
	})
}
