package main

import (
	"bytes"
	"testing"

	"github.com/bl4ck0w1/subprobe/internal/testutil"
	"github.com/spf13/pflag"
)

func runRoot(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})
	err := rootCmd.Execute()
	return out.String(), err
}

func TestSubcommandHelp(t *testing.T) {
	for _, sub := range rootCmd.Commands() {
		t.Run(sub.Name(), func(t *testing.T) {
			out, err := runRoot(t, sub.Name(), "--help")
			testutil.AssertNoError(t, err, "help")
			testutil.AssertContains(t, out, "--log-level", "inherited flags listed")
		})
	}
}

func TestHostListFlags(t *testing.T) {
	for _, name := range []string{"validate", "probe"} {
		t.Run(name, func(t *testing.T) {
			out, err := runRoot(t, name, "--help")
			testutil.AssertNoError(t, err, "help")
			testutil.AssertContains(t, out, "-l, --list", "list shorthand")
			testutil.AssertContains(t, out, "-L, --log-level", "log level shorthand")
		})
	}
}

func TestNoShorthandCollisions(t *testing.T) {
	persistent := map[string]string{}
	rootCmd.PersistentFlags().VisitAll(func(f *pflag.Flag) {
		if f.Shorthand != "" {
			persistent[f.Shorthand] = f.Name
		}
	})
	for _, sub := range rootCmd.Commands() {
		sub.LocalNonPersistentFlags().VisitAll(func(f *pflag.Flag) {
			if owner, ok := persistent[f.Shorthand]; ok && f.Shorthand != "" {
				t.Errorf("%s: -%s of --%s collides with --%s", sub.Name(), f.Shorthand, f.Name, owner)
			}
		})
	}
}
