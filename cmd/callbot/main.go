// SPDX-License-Identifier: MPL-2.0
// SPDX-FileCopyrightText: Copyright (c) 2024, Emir Aganovic

package main

import (
	"os"
	"os/signal"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/emiago/callbot"
)

var confPath string

func main() {
	root := &cobra.Command{
		Use:          "callbot",
		Short:        "AI phone agent on top of the FreeSWITCH event socket",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&confPath, "config", "c", "callbot.yaml", "config file")

	root.AddCommand(
		&cobra.Command{
			Use:   "dial",
			Short: "Place one outbound call to the configured destination",
			RunE:  runDial,
		},
		&cobra.Command{
			Use:   "serve",
			Short: "Answer inbound calls in outbound socket mode",
			RunE:  runServe,
		},
	)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func setup() (*callbot.Config, error) {
	conf, err := callbot.LoadConfig(confPath)
	if err != nil {
		return nil, err
	}

	lev, err := zerolog.ParseLevel(conf.Log.Level)
	if err != nil || lev == zerolog.NoLevel {
		lev = zerolog.InfoLevel
	}

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnixMicro
	log.Logger = zerolog.New(zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: time.StampMicro,
	}).With().Timestamp().Logger().Level(lev)
	return conf, nil
}

func runDial(cmd *cobra.Command, args []string) error {
	conf, err := setup()
	if err != nil {
		return err
	}
	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer cancel()

	agent := callbot.NewAgent(conf)
	reason, err := agent.DialOnce(ctx)
	if err != nil {
		return err
	}
	log.Info().Str("reason", string(reason)).Msg("Call ended")
	return nil
}

func runServe(cmd *cobra.Command, args []string) error {
	conf, err := setup()
	if err != nil {
		return err
	}
	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer cancel()

	agent := callbot.NewAgent(conf)
	return agent.Serve(ctx)
}
