package barcode

import (
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// scanResponse is the subset of the provider answer we read.
type scanResponse struct {
	Successful    *bool          `json:"Successful"`
	FoundBarcodes []foundBarcode `json:"FoundBarcodes"`
}

type foundBarcode struct {
	BarcodeType *string `json:"BarcodeType"`
	RawText     *string `json:"RawText"`
}

// parseScanResponse maps the provider body to codes. A missing or null
// FoundBarcodes collection yields an empty, non-nil slice.
func parseScanResponse(raw []byte) ([]Code, error) {
	var resp scanResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, err
	}

	codes := make([]Code, 0, len(resp.FoundBarcodes))
	for _, item := range resp.FoundBarcodes {
		codes = append(codes, Code{
			Type: item.BarcodeType,
			Text: item.RawText,
		})
	}
	return codes, nil
}
