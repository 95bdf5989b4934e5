package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"proofofawesome/engine/actors"
	"proofofawesome/engine/library"
	"proofofawesome/messaging/conductor"
	"proofofawesome/messaging/relays"
	"proofofawesome/messaging/socket"
	"proofofawesome/state/ledger"
)

func rootCommand(conf *viper.Viper) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "awesome",
		Short:        "Wallet and local ledger for proof of awesome chains",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringP("mnemonic", "m", "", "BIP39 seed words (or AWESOME_MNEMONIC)")
	rootCmd.PersistentFlags().StringP("passphrase", "p", "", "optional BIP39 passphrase (or AWESOME_PASSPHRASE)")
	_ = conf.BindPFlag("mnemonic", rootCmd.PersistentFlags().Lookup("mnemonic"))
	_ = conf.BindPFlag("passphrase", rootCmd.PersistentFlags().Lookup("passphrase"))

	wallet := func() (*actors.Wallet, error) {
		w, err := actors.CreateWallet(conf.GetString("mnemonic"), conf.GetString("passphrase"))
		if err != nil {
			return nil, fmt.Errorf("could not open wallet: %w", err)
		}
		return w, nil
	}

	rootCmd.AddCommand(&cobra.Command{
		Use:   "seed",
		Short: "generate new seed words, write them down if you want to keep the account",
		RunE: func(cmd *cobra.Command, args []string) error {
			words, err := actors.NewSeedWords()
			if err != nil {
				return err
			}
			fmt.Println(words)
			return nil
		},
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "pubkey",
		Short: "print the account public key",
		RunE: func(cmd *cobra.Command, args []string) error {
			w, err := wallet()
			if err != nil {
				return err
			}
			fmt.Println(w.Account())
			return nil
		},
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "address [chain uuid]...",
		Short: "print the address of this account on each chain",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			w, err := wallet()
			if err != nil {
				return err
			}
			for _, chain := range args {
				address, err := w.DeriveAddress(chain)
				if err != nil {
					return err
				}
				fmt.Printf("%s %s\n", chain, address)
			}
			return nil
		},
	})

	var chain, description, evidenceFile string
	var timestamp int64
	sign := &cobra.Command{
		Use:   "sign",
		Short: "sign an achievement and print it as json",
		RunE: func(cmd *cobra.Command, args []string) error {
			w, err := wallet()
			if err != nil {
				return err
			}
			address, err := w.DeriveAddress(chain)
			if err != nil {
				return err
			}
			var evidence string
			if len(evidenceFile) > 0 {
				b, err := os.ReadFile(evidenceFile)
				if err != nil {
					return err
				}
				evidence = string(b)
			}
			if timestamp == 0 {
				timestamp = time.Now().UnixMilli()
			}
			a := ledger.Achievement{
				ChainUUID:     chain,
				UserPublicKey: w.Account(),
				UserAddress:   address,
				Description:   description,
				EvidenceImage: evidence,
				Timestamp:     timestamp,
			}
			a.Signature, err = w.SignAchievement(a)
			if err != nil {
				return err
			}
			return printJSON(a)
		},
	}
	sign.Flags().StringVarP(&chain, "chain", "c", "", "chain uuid")
	sign.Flags().StringVarP(&description, "description", "d", "", "what you achieved")
	sign.Flags().StringVarP(&evidenceFile, "evidence", "e", "", "file holding a data uri of the evidence image")
	sign.Flags().Int64VarP(&timestamp, "timestamp", "t", 0, "unix milliseconds, defaults to now")
	_ = sign.MarkFlagRequired("chain")
	_ = sign.MarkFlagRequired("description")
	rootCmd.AddCommand(sign)

	rootCmd.AddCommand(&cobra.Command{
		Use:   "prove",
		Short: "print a signed identity proof",
		RunE: func(cmd *cobra.Command, args []string) error {
			w, err := wallet()
			if err != nil {
				return err
			}
			proof, err := w.CreateIdentityProof()
			if err != nil {
				return err
			}
			return printJSON(proof)
		},
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "verify-proof [json]",
		Short: "verify an identity proof produced by prove",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var proof actors.IdentityProof
			if err := json.Unmarshal([]byte(args[0]), &proof); err != nil {
				return err
			}
			if actors.VerifyIdentityProof(proof) {
				color.Green("valid proof for %s", proof.PublicKey)
				return nil
			}
			color.Red("invalid proof")
			return fmt.Errorf("identity proof did not verify")
		},
	})

	rootCmd.AddCommand(runCommand(conf, wallet))
	return rootCmd
}

func runCommand(conf *viper.Viper, wallet func() (*actors.Wallet, error)) *cobra.Command {
	var name, chain, achievement string
	var register bool
	run := &cobra.Command{
		Use:   "run",
		Short: "connect to the server and keep the local ledger in sync",
		RunE: func(cmd *cobra.Command, args []string) error {
			w, err := wallet()
			if err != nil {
				return err
			}
			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
			defer cancel()
			transport, err := dial(ctx, conf, w)
			if err != nil {
				return err
			}
			defer transport.Close()

			l := ledger.New()
			l.SetCash(conf.GetFloat64("cashBalance"))
			c, err := conductor.New(w, l, transport, conductor.Options{ResyncSpan: conf.GetInt64("resyncSpan")})
			if err != nil {
				return err
			}
			go func() {
				if err := c.Run(ctx); err != nil && err != context.Canceled {
					library.LogCLI(err.Error(), 1)
				}
				cancel()
			}()
			if register {
				err = c.Register(ctx, name)
			} else {
				err = c.SignIn(ctx, name)
			}
			if err != nil {
				return err
			}
			if len(achievement) > 0 {
				a, err := c.SubmitAchievement(ctx, chain, achievement, "")
				if err != nil {
					return err
				}
				library.LogCLI("submitted achievement "+a.Signature, 4)
			}
			interrupt := make(chan struct{})
			go cliListener(c, w, conf.GetInt("blockWindow"), interrupt)
			select {
			case <-interrupt:
			case <-ctx.Done():
			}
			fmt.Println(color.CyanString("total balance %s, net worth %s",
				strconv.FormatFloat(l.Totals().TotalBalance, 'f', -1, 64),
				strconv.FormatFloat(l.Totals().NetWorth, 'f', -1, 64)))
			return nil
		},
	}
	run.Flags().StringVarP(&name, "name", "n", "", "user name sent with register or sign in")
	run.Flags().BoolVarP(&register, "register", "r", false, "register a new identity instead of signing in")
	run.Flags().StringVarP(&chain, "chain", "c", "", "chain to submit --achievement to")
	run.Flags().StringVarP(&achievement, "achievement", "a", "", "submit this achievement once connected")
	return run
}

func dial(ctx context.Context, conf *viper.Viper, w *actors.Wallet) (conductor.Transport, error) {
	switch t := conf.GetString("transport"); t {
	case "socket":
		s, err := socket.Dial(ctx, conf.GetString("serverURL"))
		if err != nil {
			return nil, err
		}
		return s, nil
	case "relay":
		r, err := relays.Connect(ctx, conf.GetStringSlice("relays"), w)
		if err != nil {
			return nil, err
		}
		return r, nil
	default:
		return nil, fmt.Errorf("unknown transport %q, use socket or relay", t)
	}
}

func printJSON(v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(b))
	return nil
}
