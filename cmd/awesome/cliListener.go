package main

import (
	"fmt"

	"github.com/davecgh/go-spew/spew"
	"github.com/eiannone/keyboard"
	"github.com/fatih/color"
	"proofofawesome/engine/actors"
	"proofofawesome/messaging/conductor"
)

// cliListener is a cheap and nasty way to look inside a running session. It listens for keypresses and prints state.
func cliListener(c *conductor.Conductor, w *actors.Wallet, blockWindow int, interrupt chan struct{}) {
	fmt.Println("VIEW CURRENT STATE:\nc: chains\nb: balances\na: achievements\nk: recent blocks\nw: current wallet\nr: chains waiting for re-sync\nq: to quit")
	l := c.Ledger()
	for {
		r, k, err := keyboard.GetSingleKey()
		if err != nil {
			color.Red("%s", err)
			close(interrupt)
			return
		}
		switch str := string(r); str {
		default:
			if k == keyboard.KeyEnter {
				fmt.Println("\n-----------------------------------")
				break
			}
			if r == 0 {
				break
			}
			fmt.Println("Key " + str + " is not bound to anything. See cliListener.go for more details.")
		case "c":
			for _, brief := range l.GetChains() {
				color.Cyan("--------- Chain: %s -----------", brief.Info.Name)
				spew.Dump(brief)
			}
		case "b":
			for _, brief := range l.GetChains() {
				fmt.Printf("%s: %v tokens at %v\n", brief.Info.Name, l.GetBalance(brief.Info.UUID), brief.Stats.Price)
			}
			t := l.Totals()
			color.Green("Total balance: %v Cash: %v Net worth: %v", t.TotalBalance, t.Cash, t.NetWorth)
		case "a":
			for _, a := range l.GetAchievements() {
				reward, accepted := l.ReviewOutcome(a.Signature)
				fmt.Printf("\n%s [%s] accepted: %v reward: %v\n%s\n", a.ChainUUID, a.Signature, accepted, reward, a.Description)
			}
		case "k":
			for _, brief := range l.GetChains() {
				color.Cyan("--------- Blocks of %s -----------", brief.Info.Name)
				for _, b := range l.GetBlocks(brief.Info.UUID, blockWindow) {
					fmt.Printf("Height: %d Hash: %s Previous: %s Achievement: %s\n", b.Height, b.Hash, b.PreviousHash, b.Achievement)
				}
			}
		case "w":
			fmt.Printf("Current Wallet: \n%s\n", w.Account())
			for _, brief := range l.GetChains() {
				address, _ := w.DeriveAddress(brief.Info.UUID)
				fmt.Printf("%s: %s\n", brief.Info.Name, address)
			}
		case "r":
			for _, chain := range l.ChainsNeedingResync() {
				color.Yellow("%s", chain)
			}
		case "q":
			close(interrupt)
			return
		}
	}
}
