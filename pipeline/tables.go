package pipeline

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	parquetbuffer "github.com/xitongsys/parquet-go-source/buffer"
	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/parquet"
	parquetsource "github.com/xitongsys/parquet-go/source"
	"github.com/xitongsys/parquet-go/writer"

	eegreport "github.com/emotion-eeg/eeg-report"
	"github.com/emotion-eeg/eeg-report/sessionlog"
)

var indexColumns = []string{
	"participant_id", "stage",
	"stress", "engage", "relax", "excite", "interest", "focus",
	"cognitive_load", "affective_positivity", "directed_focus", "relax_arousal_balance", "overall_engagement",
}

// BuildIndexRows flattens a report into one row per participant and stage,
// ordered by participant id then stage order.
func BuildIndexRows(r sessionlog.Report) []IndexRow {
	var rows []IndexRow
	for _, id := range r.IDs() {
		for _, si := range eegreport.ParticipantIndices(r[id]) {
			m, ix := si.Metrics, si.Indices
			rows = append(rows, IndexRow{
				ParticipantID:       id,
				Stage:               si.Stage,
				Stress:              m.Stress,
				Engage:              m.Engage,
				Relax:               m.Relax,
				Excite:              m.Excite,
				Interest:            m.Interest,
				Focus:               m.Focus,
				CognitiveLoad:       ix.CognitiveLoad,
				AffectivePositivity: ix.AffectivePositivity,
				DirectedFocus:       ix.DirectedFocus,
				RelaxArousalBalance: ix.RelaxArousalBalance,
				OverallEngagement:   ix.OverallEngagement,
			})
		}
	}
	return rows
}

func writeIndicesCSV(w io.Writer, rows []IndexRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(indexColumns); err != nil {
		return err
	}
	for _, r := range rows {
		record := []string{
			r.ParticipantID,
			r.Stage,
			formatFloat(r.Stress),
			formatFloat(r.Engage),
			formatFloat(r.Relax),
			formatFloat(r.Excite),
			formatFloat(r.Interest),
			formatFloat(r.Focus),
			formatFloat(r.CognitiveLoad),
			formatFloat(r.AffectivePositivity),
			formatFloat(r.DirectedFocus),
			formatFloat(r.RelaxArousalBalance),
			formatFloat(r.OverallEngagement),
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func marshalIndicesCSV(rows []IndexRow) ([]byte, error) {
	var buf bytes.Buffer
	if err := writeIndicesCSV(&buf, rows); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

type indexParquetRow struct {
	ParticipantID       string  `parquet:"name=participant_id, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	Stage               string  `parquet:"name=stage, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	Stress              float64 `parquet:"name=stress, type=DOUBLE"`
	Engage              float64 `parquet:"name=engage, type=DOUBLE"`
	Relax               float64 `parquet:"name=relax, type=DOUBLE"`
	Excite              float64 `parquet:"name=excite, type=DOUBLE"`
	Interest            float64 `parquet:"name=interest, type=DOUBLE"`
	Focus               float64 `parquet:"name=focus, type=DOUBLE"`
	CognitiveLoad       float64 `parquet:"name=cognitive_load, type=DOUBLE"`
	AffectivePositivity float64 `parquet:"name=affective_positivity, type=DOUBLE"`
	DirectedFocus       float64 `parquet:"name=directed_focus, type=DOUBLE"`
	RelaxArousalBalance float64 `parquet:"name=relax_arousal_balance, type=DOUBLE"`
	OverallEngagement   float64 `parquet:"name=overall_engagement, type=DOUBLE"`
}

func writeIndicesParquet(fw parquetsource.ParquetFile, rows []IndexRow) error {
	pw, err := writer.NewParquetWriter(fw, new(indexParquetRow), 4)
	if err != nil {
		return err
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY
	for _, r := range rows {
		row := indexParquetRow(r)
		if err := pw.Write(row); err != nil {
			_ = pw.WriteStop()
			return err
		}
	}
	return pw.WriteStop()
}

// marshalIndicesParquet renders rows into an in-memory parquet file.
func marshalIndicesParquet(rows []IndexRow) ([]byte, error) {
	fw := parquetbuffer.NewBufferFile()
	if err := writeIndicesParquet(fw, rows); err != nil {
		return nil, err
	}
	if err := fw.Close(); err != nil {
		return nil, err
	}
	return append([]byte(nil), fw.Bytes()...), nil
}

// writeIndicesParquetFile streams rows straight to path.
func writeIndicesParquetFile(path string, rows []IndexRow) error {
	fw, err := local.NewLocalFileWriter(path)
	if err != nil {
		return err
	}
	if err := writeIndicesParquet(fw, rows); err != nil {
		_ = fw.Close()
		return err
	}
	return fw.Close()
}

func marshalIndices(format string, rows []IndexRow) ([]byte, error) {
	switch format {
	case "csv":
		return marshalIndicesCSV(rows)
	case "parquet":
		return marshalIndicesParquet(rows)
	default:
		return nil, fmt.Errorf("unsupported format %q (expected parquet|csv)", format)
	}
}

func normalizeFormat(format string) (string, error) {
	switch format {
	case "":
		return "parquet", nil
	case "parquet", "csv":
		return format, nil
	default:
		return "", fmt.Errorf("unsupported format %q (expected parquet|csv)", format)
	}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
