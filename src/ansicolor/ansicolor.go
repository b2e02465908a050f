package ansicolor

import "runtime"

// Terminal escape codes used by the pretty log writer. All of them collapse
// to empty strings on Windows, whose default console does not render them.

var Reset = "\033[0m"
var Bold = "\033[1m"
var Faint = "\033[2m"

var Red = "\033[31m"
var Green = "\033[32m"
var Yellow = "\033[33m"
var Blue = "\033[34m"
var Gray = "\033[37m"

var BgRed = "\033[41m"
var BgYellow = "\033[43m"
var BgBlue = "\033[44m"

func init() {
	if runtime.GOOS == "windows" {
		for _, c := range []*string{&Reset, &Bold, &Faint, &Red, &Green, &Yellow, &Blue, &Gray, &BgRed, &BgYellow, &BgBlue} {
			*c = ""
		}
	}
}
