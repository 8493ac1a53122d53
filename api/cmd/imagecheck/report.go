package main

import (
	"fmt"
	"io"

	"github.com/fatih/color"

	"image-check/api/internal/imagecheck"
)

func verdictColor(action int) *color.Color {
	switch action {
	case imagecheck.ActionConfirmed:
		return colorRed
	case imagecheck.ActionSuspicious:
		return colorYellow
	default:
		return colorGreen
	}
}

func printSummary(w io.Writer, batch int, s imagecheck.Summary) {
	if !s.OK {
		colorRed.Fprintf(w, "batch %d: ERROR code=%d msg=%s\n", batch, s.Code, s.Msg)
		return
	}
	colorCyan.Fprintf(w, "batch %d: %d normal, %d suspicious, %d confirmed, %d failed\n",
		batch, s.Counts.Normal, s.Counts.Suspicious, s.Counts.Confirmed, s.Counts.Failed)

	for _, img := range s.Images {
		switch {
		case img.Failed:
			colorRed.Fprintf(w, "  taskId: %s, status: %d, name: %s: %s\n", img.TaskID, img.Status, img.Name, img.FailureReason)
		case img.Action != nil:
			fmt.Fprintf(w, "  taskId: %s, status: %d, name: %s, action: ", img.TaskID, img.Status, img.Name)
			verdictColor(*img.Action).Fprintf(w, "%s\n", img.Verdict)
			for _, l := range img.Labels {
				fmt.Fprintf(w, "    label: %d, level: %d, rate: %.4f, subLabels: %v\n", l.Label, l.Level, l.Rate, l.SubLabels)
			}
		default:
			fmt.Fprintf(w, "  taskId: %s, name: %s\n", img.TaskID, img.Name)
		}
		if img.OCRText != "" {
			fmt.Fprintf(w, "    ocr: %q\n", img.OCRText)
		}
		if img.FaceCount != nil {
			fmt.Fprintf(w, "    faces: %d\n", *img.FaceCount)
		}
		if img.AestheticsRate != nil {
			fmt.Fprintf(w, "    aesthetics: %.4f\n", *img.AestheticsRate)
		}
	}
}
