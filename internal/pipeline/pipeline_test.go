package pipeline

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/tormoder/fit"

	"github.com/sstent/activityplot-go/internal/config"
	"github.com/sstent/activityplot-go/internal/database"
	"github.com/sstent/activityplot-go/internal/logging"
	"github.com/sstent/activityplot-go/internal/parser"
	"github.com/sstent/activityplot-go/internal/plot"
	"github.com/sstent/activityplot-go/internal/staging"
)

const rideGPX = `<?xml version="1.0" encoding="UTF-8"?>
<gpx version="1.1" creator="test" xmlns="http://www.topografix.com/GPX/1/1"
  xmlns:gpxtpx="http://www.garmin.com/xmlschemas/TrackPointExtension/v1">
  <trk><trkseg>
    <trkpt lat="37.0000" lon="-122.0000"><ele>10</ele><time>2024-05-01T10:00:00Z</time>
      <extensions><gpxtpx:TrackPointExtension><gpxtpx:hr>120</gpxtpx:hr></gpxtpx:TrackPointExtension></extensions></trkpt>
    <trkpt lat="37.0010" lon="-122.0000"><ele>12</ele><time>2024-05-01T10:00:10Z</time>
      <extensions><gpxtpx:TrackPointExtension><gpxtpx:hr>125</gpxtpx:hr></gpxtpx:TrackPointExtension></extensions></trkpt>
    <trkpt lat="37.0020" lon="-122.0000"><ele>15</ele><time>2024-05-01T10:00:20Z</time>
      <extensions><gpxtpx:TrackPointExtension><gpxtpx:hr>130</gpxtpx:hr></gpxtpx:TrackPointExtension></extensions></trkpt>
  </trkseg></trk>
</gpx>`

const liftTCX = `<?xml version="1.0" encoding="UTF-8"?>
<TrainingCenterDatabase xmlns="http://www.garmin.com/xmlschemas/TrainingCenterDatabase/v2">
  <Activities><Activity Sport="Other"><Lap StartTime="2024-05-01T18:00:00Z"><Track>
    <Trackpoint><Time>2024-05-01T18:00:00Z</Time><AltitudeMeters>50</AltitudeMeters><DistanceMeters>0</DistanceMeters><HeartRateBpm><Value>95</Value></HeartRateBpm></Trackpoint>
    <Trackpoint><Time>2024-05-01T18:00:30Z</Time><DistanceMeters>10</DistanceMeters><HeartRateBpm><Value>110</Value></HeartRateBpm></Trackpoint>
    <Trackpoint><Time>2024-05-01T18:01:00Z</Time><AltitudeMeters>51</AltitudeMeters><DistanceMeters>12</DistanceMeters><HeartRateBpm><Value>120</Value></HeartRateBpm></Trackpoint>
  </Track></Lap></Activity></Activities>
</TrainingCenterDatabase>`

type env struct {
	cfg  config.Config
	base string
}

func newEnv(t *testing.T) env {
	t.Helper()
	cfg := config.Default()
	cfg.BaseDir = t.TempDir()
	cfg.StagingDir = t.TempDir()
	return env{cfg: cfg, base: cfg.BaseDir}
}

func (e env) write(t *testing.T, rel string, data []byte, compress bool) {
	t.Helper()
	if compress {
		var buf bytes.Buffer
		zw := gzip.NewWriter(&buf)
		if _, err := zw.Write(data); err != nil {
			t.Fatalf("gzip: %v", err)
		}
		if err := zw.Close(); err != nil {
			t.Fatalf("gzip close: %v", err)
		}
		data = buf.Bytes()
	}
	path := filepath.Join(e.base, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func (e env) pipeline(opts ...Option) *Pipeline {
	return New(e.cfg, append([]Option{WithLogger(logging.Discard())}, opts...)...)
}

func stagingEmpty(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read staging: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected staging dir to be cleaned up, found %d files", len(entries))
	}
}

func TestBuildCompressedGPX(t *testing.T) {
	e := newEnv(t)
	e.write(t, "activities/101.gpx.gz", []byte(rideGPX), true)

	bundle, err := e.pipeline().Build(context.Background(), Activity{ID: "101", Filename: "activities/101.gpx.gz", Type: "Ride"})
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	for _, m := range []plot.Metric{plot.Speed, plot.Elevation, plot.HeartRate} {
		chart, ok := bundle[m]
		if !ok {
			t.Fatalf("expected %s in bundle, got %v", m, bundle.Names())
		}
		if chart.XAxisLabel != plot.AxisDistance {
			t.Fatalf("%s should be distance-indexed", m)
		}
		if len(chart.Series.X) != 3 || len(chart.Series.Y) != 3 {
			t.Fatalf("%s: expected 3 points, got %d/%d", m, len(chart.Series.X), len(chart.Series.Y))
		}
	}
	if _, ok := bundle[plot.Cadence]; ok {
		t.Fatalf("cadence was never recorded")
	}
	stagingEmpty(t, e.cfg.StagingDir)
}

func TestBuildIndoorTCX(t *testing.T) {
	e := newEnv(t)
	e.write(t, "activities/202.tcx", []byte(liftTCX), false)

	bundle, err := e.pipeline().Build(context.Background(), Activity{ID: "202", Filename: "activities/202.tcx", Type: "Weight Training"})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if _, ok := bundle[plot.Elevation]; ok {
		t.Fatalf("indoor activity must not include elevation")
	}
	hr, ok := bundle[plot.HeartRate]
	if !ok {
		t.Fatalf("expected heart rate chart")
	}
	if hr.XAxisLabel != plot.AxisTime {
		t.Fatalf("expected time axis, got %q", hr.XAxisLabel)
	}
	if want := []float64{0, 30, 60}; fmt.Sprint(hr.Series.X) != fmt.Sprint(want) {
		t.Fatalf("expected elapsed seconds %v, got %v", want, hr.Series.X)
	}
}

func indoorFIT(t *testing.T) []byte {
	t.Helper()
	header := fit.NewHeader(fit.V20, true)
	file, err := fit.NewFile(fit.FileTypeActivity, header)
	if err != nil {
		t.Fatalf("new fit file: %v", err)
	}
	activity, err := file.Activity()
	if err != nil {
		t.Fatalf("activity accessor: %v", err)
	}

	start := time.Date(2024, 5, 2, 7, 0, 0, 0, time.UTC)
	event := fit.NewEventMsg()
	event.Timestamp = start
	event.Event = fit.EventTimer
	event.EventType = fit.EventTypeStart
	activity.Events = append(activity.Events, event)

	for i := 0; i < 4; i++ {
		r := fit.NewRecordMsg()
		r.Timestamp = start.Add(time.Duration(i) * time.Second)
		r.Power = 180
		r.Cadence = 85
		activity.Records = append(activity.Records, r)
	}

	var buf bytes.Buffer
	if err := fit.Encode(&buf, file, binary.LittleEndian); err != nil {
		t.Fatalf("encode fit: %v", err)
	}
	return buf.Bytes()
}

func TestBuildFITWithoutHeartRate(t *testing.T) {
	e := newEnv(t)
	e.write(t, "activities/303.fit.gz", indoorFIT(t), true)

	bundle, err := e.pipeline().Build(context.Background(), Activity{ID: "303", Filename: "activities/303.fit.gz", Type: "Virtual Ride"})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if _, ok := bundle[plot.HeartRate]; ok {
		t.Fatalf("heart rate absent from every record must be excluded")
	}
	if p, ok := bundle[plot.Power]; !ok || p.XAxisLabel != plot.AxisTime {
		t.Fatalf("expected time-indexed power chart, got %+v", p)
	}
	if _, ok := bundle[plot.Cadence]; !ok {
		t.Fatalf("expected cadence chart")
	}
}

func TestBuildEmptyTrack(t *testing.T) {
	e := newEnv(t)
	e.write(t, "activities/404.tcx", []byte(`<TrainingCenterDatabase><Activities/></TrainingCenterDatabase>`), false)

	bundle, err := e.pipeline().Build(context.Background(), Activity{ID: "404", Filename: "activities/404.tcx", Type: "Run"})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if len(bundle) != 0 {
		t.Fatalf("expected empty bundle, got %v", bundle.Names())
	}
}

func TestBuildMissingFile(t *testing.T) {
	e := newEnv(t)
	_, err := e.pipeline().Build(context.Background(), Activity{ID: "7", Filename: "activities/7.fit.gz", Type: "Ride"})
	if !errors.Is(err, ErrFileNotFound) {
		t.Fatalf("expected ErrFileNotFound, got %v", err)
	}
	if !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("cause should be preserved, got %v", err)
	}
	var perr *Error
	if !errors.As(err, &perr) || perr.ActivityID != "7" {
		t.Fatalf("expected *Error for activity 7, got %v", err)
	}
	if msg := UserMessage(err); msg != "activity file not found" {
		t.Fatalf("unexpected message %q", msg)
	}
}

func TestBuildMalformedFile(t *testing.T) {
	e := newEnv(t)
	e.write(t, "activities/8.gpx", []byte("<gpx><trk><trkseg><trkpt"), false)
	e.write(t, "activities/9.fit.gz", []byte("garbage"), false)

	p := e.pipeline()
	for _, name := range []string{"activities/8.gpx", "activities/9.fit.gz"} {
		_, err := p.Build(context.Background(), Activity{ID: "x", Filename: name, Type: "Ride"})
		if !errors.Is(err, ErrMalformedFile) {
			t.Fatalf("%s: expected ErrMalformedFile, got %v", name, err)
		}
		if msg := UserMessage(err); msg != "could not read activity file" {
			t.Fatalf("%s: unexpected message %q", name, msg)
		}
	}
	if _, err := os.Stat(filepath.Join(e.base, "activities/8.gpx")); err != nil {
		t.Fatalf("source must not be touched: %v", err)
	}
	stagingEmpty(t, e.cfg.StagingDir)
}

func TestBuildUnsupportedExtension(t *testing.T) {
	e := newEnv(t)
	e.write(t, "activities/10.txt", []byte("hello"), false)

	_, err := e.pipeline().Build(context.Background(), Activity{ID: "10", Filename: "activities/10.txt"})
	if !errors.Is(err, ErrMalformedFile) || !errors.Is(err, parser.ErrUnsupported) {
		t.Fatalf("expected unsupported file error, got %v", err)
	}
	if msg := UserMessage(err); msg != "could not read activity file" {
		t.Fatalf("unexpected message %q", msg)
	}
}

func TestResolveRejectsEscapes(t *testing.T) {
	p := newEnv(t).pipeline()
	for _, name := range []string{"", "../secret.fit", "/etc/passwd", "activities/../../x.gpx"} {
		if _, err := p.Resolve(name); !errors.Is(err, ErrOutsideBase) {
			t.Fatalf("%q: expected ErrOutsideBase, got %v", name, err)
		}
	}
	got, err := p.Resolve("activities/1.fit")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if filepath.Base(got) != "1.fit" {
		t.Fatalf("unexpected path %q", got)
	}

	_, err = p.Build(context.Background(), Activity{ID: "1", Filename: "../x.gpx"})
	if !errors.Is(err, ErrFileNotFound) {
		t.Fatalf("escaping filename should read as not found, got %v", err)
	}
}

func TestBuildCancelled(t *testing.T) {
	e := newEnv(t)
	e.write(t, "activities/1.gpx", []byte(rideGPX), false)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := e.pipeline().Build(ctx, Activity{ID: "1", Filename: "activities/1.gpx"})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if msg := UserMessage(err); msg != "request cancelled" {
		t.Fatalf("unexpected message %q", msg)
	}
}

type fakeLookup map[int]*database.Activity

func (f fakeLookup) GetActivity(id int) (*database.Activity, error) {
	if a, ok := f[id]; ok {
		return a, nil
	}
	return nil, fmt.Errorf("%w: %d", database.ErrNotFound, id)
}

func TestBuildByID(t *testing.T) {
	e := newEnv(t)
	e.write(t, "activities/55.gpx", []byte(rideGPX), false)

	lookup := fakeLookup{55: {ActivityID: 55, ActivityType: "Ride", Filename: "activities/55.gpx"}}
	p := e.pipeline(WithLookup(lookup))

	bundle, a, err := p.BuildByID(context.Background(), 55)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if a.ID != "55" || a.Type != "Ride" {
		t.Fatalf("unexpected activity %+v", a)
	}
	if _, ok := bundle[plot.HeartRate]; !ok {
		t.Fatalf("expected heart rate chart")
	}

	if _, _, err := p.BuildByID(context.Background(), 56); !errors.Is(err, ErrFileNotFound) {
		t.Fatalf("unknown id should surface as not found, got %v", err)
	}

	if _, _, err := e.pipeline().BuildByID(context.Background(), 55); err == nil {
		t.Fatalf("expected error without a catalogue")
	}
}

func TestBuildFile(t *testing.T) {
	e := newEnv(t)
	path := filepath.Join(t.TempDir(), "loose.xml")
	if err := os.WriteFile(path, []byte(liftTCX), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	bundle, err := e.pipeline().BuildFile(context.Background(), path, "Run")
	if err != nil {
		t.Fatalf("build file: %v", err)
	}
	if hr, ok := bundle[plot.HeartRate]; !ok || hr.XAxisLabel != plot.AxisDistance {
		t.Fatalf("expected distance-indexed heart rate, got %+v", hr)
	}
	if _, ok := bundle[plot.Elevation]; !ok {
		t.Fatalf("expected elevation for outdoor activity")
	}
}

func TestWithStagerIsUsed(t *testing.T) {
	e := newEnv(t)
	e.write(t, "activities/101.gpx.gz", []byte(rideGPX), true)

	blocker := filepath.Join(t.TempDir(), "not-a-dir")
	if err := os.WriteFile(blocker, []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	stager := staging.NewStager(filepath.Join(blocker, "staging"), logging.Discard())

	_, err := e.pipeline(WithStager(stager)).Build(context.Background(), Activity{ID: "101", Filename: "activities/101.gpx.gz"})
	if err == nil {
		t.Fatalf("expected the injected stager's directory error")
	}
	stagingEmpty(t, e.cfg.StagingDir)

	own := staging.NewStager(t.TempDir(), logging.Discard())
	if _, err := e.pipeline(WithStager(own)).Build(context.Background(), Activity{ID: "101", Filename: "activities/101.gpx.gz", Type: "Ride"}); err != nil {
		t.Fatalf("build with injected stager: %v", err)
	}
	stagingEmpty(t, own.Dir)
}
