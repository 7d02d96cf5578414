package main

import (
	"fmt"

	"satinel-backend/internal/core"
	"satinel-backend/internal/core/types"
	"satinel-backend/internal/detection"

	"github.com/spf13/cobra"
)

func diffMasks(beforePath, afterPath string, minPixels int) (types.ChangeStats, error) {
	before, err := detection.LoadMask(beforePath)
	if err != nil {
		return types.ChangeStats{}, err
	}
	after, err := detection.LoadMask(afterPath)
	if err != nil {
		return types.ChangeStats{}, err
	}

	stats, err := core.ChangeFromMasks(before, after, minPixels)
	if err != nil {
		return types.ChangeStats{}, fmt.Errorf("unable to diff %s and %s: %w", beforePath, afterPath, err)
	}
	return stats, nil
}

func maskCmd() *cobra.Command {
	mask := &cobra.Command{
		Use:   "mask",
		Short: "Work with precomputed segmentation masks",
	}

	var minPixels int
	diff := &cobra.Command{
		Use:   "diff <before_mask.png> <after_mask.png>",
		Short: "Compare two masks pixel by pixel and print the change statistics",
		Args:  cobra.ExactArgs(2),
		RunE: func(c *cobra.Command, args []string) error {
			stats, err := diffMasks(args[0], args[1], minPixels)
			if err != nil {
				return err
			}
			return writeJSON(c.OutOrStdout(), stats)
		},
	}
	diff.Flags().IntVar(&minPixels, "min-pixels", core.DefaultMinObjectPixels, "smallest region counted as an object")

	mask.AddCommand(diff)
	return mask
}
