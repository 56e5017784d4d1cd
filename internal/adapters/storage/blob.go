package storage

// blob.go — codec de la serie predicha: JSON comprimido con s2.

import (
	"encoding/json"
	"fmt"

	"github.com/klauspost/compress/s2"

	"github.com/alejandrodnm/wellfit/internal/domain"
)

// encodePredicted serializa la serie como JSON y la comprime con s2.
// Una serie vacía codifica como nil para no guardar blobs de "null".
func encodePredicted(series domain.PredictedSeries) ([]byte, error) {
	if len(series) == 0 {
		return nil, nil
	}
	raw, err := json.Marshal(series)
	if err != nil {
		return nil, fmt.Errorf("marshal predicted: %w", err)
	}
	return s2.Encode(nil, raw), nil
}

// decodePredicted descomprime y deserializa un blob de serie predicha.
func decodePredicted(blob []byte) (domain.PredictedSeries, error) {
	if len(blob) == 0 {
		return nil, nil
	}
	raw, err := s2.Decode(nil, blob)
	if err != nil {
		return nil, fmt.Errorf("s2 decode: %w", err)
	}
	var series domain.PredictedSeries
	if err := json.Unmarshal(raw, &series); err != nil {
		return nil, fmt.Errorf("unmarshal predicted: %w", err)
	}
	return series, nil
}
