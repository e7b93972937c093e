package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/recipesync/internal/capability"
)

// MaskView is the printable result of the caps commands.
type MaskView struct {
	Domain  string   `json:"domain"`
	Mask    int64    `json:"mask"`
	Labels  []string `json:"labels"`
	Unknown int64    `json:"unknown,omitempty"`
	Display string   `json:"display"`
}

func (v MaskView) String() string {
	s := fmt.Sprintf("%d\t%s", v.Mask, v.Display)
	if v.Unknown != 0 {
		s += fmt.Sprintf("\t(unknown bits %d)", v.Unknown)
	}
	return s
}

func newMaskView(mask int64, set *capability.Set) MaskView {
	labels := capability.Decode(mask, set)
	if labels == nil {
		labels = []string{}
	}
	v := MaskView{
		Domain:  set.Name,
		Mask:    mask,
		Labels:  labels,
		Display: capability.Display(mask, set, ", "),
	}
	if set.Kind == capability.KindMulti {
		v.Unknown = capability.Unknown(mask, set)
	}
	return v
}

// DomainView lists the labels of one domain.
type DomainView struct {
	Domain string             `json:"domain"`
	Kind   capability.Kind    `json:"kind"`
	Labels []capability.Label `json:"labels"`
}

func (v DomainView) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s (%s)", v.Domain, v.Kind)
	for _, l := range v.Labels {
		fmt.Fprintf(&b, "\n  %6d  %s", l.Bit, l.Name)
	}
	return b.String()
}

// NewCapsCommand creates the caps command group.
func NewCapsCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "caps",
		Short: "Encode and decode capability masks",
		Long: `Work with the capability vocabularies (tools, allergies, foodType) shared by
profiles and recipes.

Example:
  recipesync caps encode tools 프라이팬 웍
  recipesync caps decode allergies 5
  recipesync caps toggle tools 5 냄비`,
	}

	cmd.AddCommand(newCapsListCommand(rootOpts))
	cmd.AddCommand(newCapsEncodeCommand(rootOpts))
	cmd.AddCommand(newCapsDecodeCommand(rootOpts))
	cmd.AddCommand(newCapsToggleCommand(rootOpts))
	return cmd
}

// capsSet loads the registry named by config and returns one domain.
func capsSet(rootOpts *RootOptions, cmd *cobra.Command, domain string) (*capability.Set, error) {
	cfg, _, err := loadConfig(rootOpts, cmd)
	if err != nil {
		return nil, err
	}
	reg, err := cfg.LoadRegistry()
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load capability registry", err)
	}
	set, err := reg.Set(domain)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, fmt.Sprintf("domains are %v", reg.Names()), err)
	}
	return set, nil
}

func parseMask(s string) (int64, error) {
	mask, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, WrapExitError(ExitCommandError, "invalid mask", err)
	}
	if mask < 0 {
		return 0, NewExitError(ExitCommandError, fmt.Sprintf("invalid mask %d: must not be negative", mask))
	}
	return mask, nil
}

func newCapsListCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "list <domain>",
		Short:         "List the labels of a domain",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			set, err := capsSet(rootOpts, cmd, args[0])
			if err != nil {
				return err
			}
			return rootOpts.formatter(cmd).Success(DomainView{Domain: set.Name, Kind: set.Kind, Labels: set.Labels})
		},
	}
}

func newCapsEncodeCommand(rootOpts *RootOptions) *cobra.Command {
	var strict bool
	cmd := &cobra.Command{
		Use:           "encode <domain> [label...]",
		Short:         "Encode labels into a mask",
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			set, err := capsSet(rootOpts, cmd, args[0])
			if err != nil {
				return err
			}
			labels := args[1:]
			if strict {
				for _, l := range labels {
					if _, ok := set.Bit(l); !ok {
						return NewExitError(ExitCommandError, fmt.Sprintf("unknown %s label %q", set.Name, l))
					}
				}
			}
			if set.Kind == capability.KindSingle && len(labels) > 1 {
				return NewExitError(ExitCommandError, fmt.Sprintf("%s takes a single label", set.Name))
			}
			var mask int64
			if set.Kind == capability.KindSingle && len(labels) == 1 {
				mask, _ = set.Bit(labels[0])
			} else {
				mask = capability.Encode(labels, set)
			}
			return rootOpts.formatter(cmd).Success(newMaskView(mask, set))
		},
	}
	cmd.Flags().BoolVar(&strict, "strict", false, "fail on unknown labels instead of ignoring them")
	return cmd
}

func newCapsDecodeCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "decode <domain> <mask>",
		Short:         "Decode a mask into labels",
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			set, err := capsSet(rootOpts, cmd, args[0])
			if err != nil {
				return err
			}
			mask, err := parseMask(args[1])
			if err != nil {
				return err
			}
			return rootOpts.formatter(cmd).Success(newMaskView(mask, set))
		},
	}
}

func newCapsToggleCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "toggle <domain> <mask> <label>",
		Short: "Flip one label in a mask",
		Long: `Flip one label in a mask, leaving every other bit alone. For single-select
domains the label replaces the value.`,
		Args:          cobra.ExactArgs(3),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			set, err := capsSet(rootOpts, cmd, args[0])
			if err != nil {
				return err
			}
			mask, err := parseMask(args[1])
			if err != nil {
				return err
			}
			bit, ok := set.Bit(args[2])
			if !ok {
				return NewExitError(ExitCommandError, fmt.Sprintf("unknown %s label %q", set.Name, args[2]))
			}
			if set.Kind == capability.KindSingle {
				mask = bit
			} else {
				mask = capability.Toggle(mask, bit)
			}
			return rootOpts.formatter(cmd).Success(newMaskView(mask, set))
		},
	}
}
