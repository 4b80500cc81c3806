// Package ocr reads licence-plate text from image crops.
//
// Recognition uses Tesseract through gosseract, which requires CGO and the
// Tesseract and Leptonica libraries. Binarize is a pure-Go rendition of the
// OpenCV plate preprocessing for callers that start from an image.Image.
package ocr
