package commands

import (
	"fmt"

	"chunkvault/pkg/types"

	"github.com/spf13/cobra"
)

var urlCmd = &cobra.Command{
	Use:   "url [address]",
	Short: "Print the safe:// URL of a 64-char hex address",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if CV == nil {
			return fmt.Errorf("app not initialized")
		}
		addr, err := types.ParseAddress(args[0])
		if err != nil {
			return err
		}

		// 与远端调用方走同一条路径：地址槽 -> AddressToURL -> EncodedAddress 槽
		b, err := CV.NewBridge()
		if err != nil {
			return err
		}
		if err := b.SetAddress(addr); err != nil {
			return err
		}
		n, err := CV.Pipeline.AddressToURL(b)
		if err != nil {
			return err
		}
		url, err := b.EncodedAddressString(n)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), url)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(urlCmd)
}
