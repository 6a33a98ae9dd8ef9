// Package export writes aligned activity series as CSV or parquet, one row
// per sample.
package export

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/gocarina/gocsv"
	parquetbuffer "github.com/xitongsys/parquet-go-source/buffer"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"

	"github.com/sstent/activityplot-go/internal/series"
)

type Format string

const (
	FormatCSV     Format = "csv"
	FormatParquet Format = "parquet"
)

// ParseFormat accepts "csv" or "parquet" in any case.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatCSV, FormatParquet:
		return f, nil
	default:
		return "", fmt.Errorf("unknown export format %q", s)
	}
}

// Ext returns the file extension for the format, including the dot.
func (f Format) Ext() string {
	return "." + string(f)
}

// Row is one aligned sample. Series the activity never recorded are nil.
type Row struct {
	ElapsedS     float64  `csv:"elapsed_s" parquet:"name=elapsed_s, type=DOUBLE"`
	Time         string   `csv:"time" parquet:"name=time, type=BYTE_ARRAY, convertedtype=UTF8"`
	DistanceMi   *float64 `csv:"distance_mi" parquet:"name=distance_mi, type=DOUBLE, repetitiontype=OPTIONAL"`
	AltitudeFt   *float64 `csv:"altitude_ft" parquet:"name=altitude_ft, type=DOUBLE, repetitiontype=OPTIONAL"`
	SpeedMPH     *float64 `csv:"speed_mph" parquet:"name=speed_mph, type=DOUBLE, repetitiontype=OPTIONAL"`
	HeartRateBPM *float64 `csv:"heart_rate_bpm" parquet:"name=heart_rate_bpm, type=DOUBLE, repetitiontype=OPTIONAL"`
	CadenceRPM   *float64 `csv:"cadence_rpm" parquet:"name=cadence_rpm, type=DOUBLE, repetitiontype=OPTIONAL"`
	PowerW       *float64 `csv:"power_w" parquet:"name=power_w, type=DOUBLE, repetitiontype=OPTIONAL"`
	TemperatureF *float64 `csv:"temperature_f" parquet:"name=temperature_f, type=DOUBLE, repetitiontype=OPTIONAL"`
}

// Rows flattens s. A series shorter than the time axis leaves the trailing
// cells empty.
func Rows(s series.Series) []Row {
	rows := make([]Row, s.Len())
	for i, ts := range s.Time {
		rows[i] = Row{
			ElapsedS:     at(s.Elapsed, i),
			Time:         ts.UTC().Format(time.RFC3339),
			DistanceMi:   ptrAt(s.Distance, i),
			AltitudeFt:   ptrAt(s.Altitude, i),
			SpeedMPH:     ptrAt(s.Speed, i),
			HeartRateBPM: ptrAt(s.HeartRate, i),
			CadenceRPM:   ptrAt(s.Cadence, i),
			PowerW:       ptrAt(s.Power, i),
			TemperatureF: ptrAt(s.Temperature, i),
		}
	}
	return rows
}

func at(vals []float64, i int) float64 {
	if i < len(vals) {
		return vals[i]
	}
	return 0
}

func ptrAt(vals []float64, i int) *float64 {
	if i >= len(vals) {
		return nil
	}
	v := vals[i]
	return &v
}

// Write encodes s to w in the given format.
func Write(w io.Writer, f Format, s series.Series) error {
	switch f {
	case FormatCSV:
		return CSV(w, s)
	case FormatParquet:
		return Parquet(w, s)
	default:
		return fmt.Errorf("unknown export format %q", f)
	}
}

// CSV writes a header line followed by one line per sample.
func CSV(w io.Writer, s series.Series) error {
	rows := Rows(s)
	if err := gocsv.Marshal(&rows, w); err != nil {
		return fmt.Errorf("failed to write csv: %w", err)
	}
	return nil
}

// Parquet writes a SNAPPY-compressed parquet file.
func Parquet(w io.Writer, s series.Series) error {
	data, err := marshalParquet(Rows(s))
	if err != nil {
		return fmt.Errorf("failed to write parquet: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write parquet: %w", err)
	}
	return nil
}

func marshalParquet(rows []Row) ([]byte, error) {
	fw := parquetbuffer.NewBufferFile()
	pw, err := writer.NewParquetWriter(fw, new(Row), 4)
	if err != nil {
		return nil, err
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY
	for _, row := range rows {
		if err := pw.Write(row); err != nil {
			_ = pw.WriteStop()
			return nil, err
		}
	}
	if err := pw.WriteStop(); err != nil {
		return nil, err
	}
	if err := fw.Close(); err != nil {
		return nil, err
	}
	return append([]byte(nil), fw.Bytes()...), nil
}
