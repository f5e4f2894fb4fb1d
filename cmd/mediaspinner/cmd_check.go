/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/friendsincode/mediaspinner/internal/catalog"
	"github.com/friendsincode/mediaspinner/internal/config"
	"github.com/friendsincode/mediaspinner/internal/library"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Validate the spin configuration against the media library",
	Long:  "Scan the media root, load the spin configuration, and build the catalog without starting the server. Exits non-zero on any configuration problem.",
	RunE:  runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	if err := loadConfig(); err != nil {
		return err
	}

	spin, err := config.LoadSpinConfig(cfg.SpinConfigPath)
	if err != nil {
		return err
	}

	lib := library.New(cfg.MediaRoot, logger)
	scan, err := lib.Scan()
	if err != nil {
		return err
	}

	cat, err := catalog.Build(scan, spin)
	if err != nil {
		return err
	}
	if cat.Len() == 0 {
		return fmt.Errorf("no collections found under %s", cfg.MediaRoot)
	}

	for _, col := range cat.Collections() {
		logger.Info().
			Str("collection", col.ID).
			Int("items", len(col.Items)).
			Float64("weight", col.Weight).
			Int("backoff", col.Backoff).
			Msg("collection ok")

		if len(col.Items) <= spin.SameMediaBackoff {
			logger.Warn().
				Str("collection", col.ID).
				Msg("fewer items than same_media_backoff requires, relaxation will trigger")
		}
		if col.Backoff >= cat.Len() {
			logger.Warn().
				Str("collection", col.ID).
				Msg("backoff not satisfiable with this few collections, relaxation will trigger")
		}
	}

	logger.Info().Int("collections", cat.Len()).Msg("configuration valid")
	return nil
}
