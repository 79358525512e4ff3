package pipeline

import (
	"github.com/ZaneKhartabill/clamser"
	"github.com/ZaneKhartabill/clamser/oxymax"
	parquetbuffer "github.com/xitongsys/parquet-go-source/buffer"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"
)

type recordParquetRow struct {
	Timestamp string  `parquet:"name=timestamp, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	CageID    string  `parquet:"name=cage_id, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	Value     float64 `parquet:"name=value, type=DOUBLE"`
	Hour      int32   `parquet:"name=hour, type=INT32"`
	IsLight   bool    `parquet:"name=is_light, type=BOOLEAN"`
}

func marshalRecordsParquet(records []oxymax.Record) ([]byte, error) {
	fw := parquetbuffer.NewBufferFile()
	pw, err := writer.NewParquetWriter(fw, new(recordParquetRow), 4)
	if err != nil {
		return nil, err
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY
	for _, r := range records {
		row := recordParquetRow{
			Timestamp: r.Timestamp.Format(timestampLayout),
			CageID:    r.CageID,
			Value:     r.Value,
			Hour:      int32(clamser.HourOf(r)),
			IsLight:   clamser.IsLight(r.Timestamp),
		}
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
