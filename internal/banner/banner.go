package banner

import (
	"github.com/pterm/pterm"
	"github.com/pterm/pterm/putils"
)

func Print() {
	ptermLogo, _ := pterm.DefaultBigText.WithLetters(
		putils.LettersFromStringWithRGB("Tail", pterm.NewRGB(255, 107, 53)),
		putils.LettersFromStringWithRGB("Track", pterm.NewRGB(0, 0, 0))).
		Srender()

	pterm.DefaultCenter.Print(ptermLogo)

	pterm.DefaultCenter.Print(
		pterm.DefaultHeader.
			WithFullWidth().
			WithBackgroundStyle(pterm.NewStyle(pterm.BgLightRed)).
			WithMargin(5).
			Sprint(pterm.White("tailtrack - resumable, rotation-aware log tailing")),
	)

	pterm.Info.Println(
		"Tracks position across log rotation, resumes after restart, never loses or" +
			"\nduplicates a line while inodes stay stable." +
			"\nVersion 0.0.1.",
	)
}
