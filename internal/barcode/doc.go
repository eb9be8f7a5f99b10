// Package barcode forwards images to an external barcode recognition
// provider and normalizes its answer into a list of decoded codes.
//
// No decoding happens locally. The provider contract is a Cloudmersive-style
// scan endpoint: one multipart POST carrying the image under the field
// "imageFile", authenticated with an "Apikey" header, answering with a JSON
// document that lists FoundBarcodes entries of {BarcodeType, RawText}.
//
// Example:
//
//	client := barcode.NewClient(barcode.Config{APIKey: key})
//	codes, err := client.Decode(ctx, barcode.Image{Data: data, Filename: "frame.jpg"})
package barcode
