package commands

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/carfob/carfob-go/pkg/layout"
	"github.com/carfob/carfob-go/pkg/provision"
)

// InspectOptions are the inputs of the inspect command.
type InspectOptions struct {
	Role string
	JSON bool
}

// RunInspect prints the slots of an image. Feature tokens in a fob image
// are verified when the secrets directory holds the manufacturer key.
func RunInspect(env *Env, path string, opts InspectOptions, w io.Writer) error {
	role, err := layout.ParseRole(opts.Role)
	if err != nil {
		return err
	}

	img, _, err := provision.ReadImage(path, role, env.Config.FillByte.Byte())
	if err != nil {
		return err
	}

	issuer, err := env.issuerPublic()
	if err != nil {
		return err
	}

	rep, err := provision.Inspect(img, issuer)
	if err != nil {
		return err
	}

	if opts.JSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(rep)
	}
	formatReport(w, rep)
	return nil
}

func formatReport(w io.Writer, rep *provision.Report) {
	fmt.Fprintf(w, "Role:    %s (layout v%d)\n", rep.Role, rep.LayoutVersion)
	fmt.Fprintf(w, "Fill:    0x%02X\n", rep.FillByte)
	fmt.Fprintf(w, "SHA256:  %s\n", rep.SHA256)
	if rep.CarID != "" {
		fmt.Fprintf(w, "Car ID:  %s\n", rep.CarID)
	}
	if rep.Role == layout.RoleFob.String() {
		fmt.Fprintf(w, "Paired:  %v\n", rep.Paired)
	}
	fmt.Fprintln(w)

	for _, s := range rep.Slots {
		var value string
		switch {
		case !s.Populated:
			value = "-"
		case s.Redacted:
			value = "<redacted>"
		default:
			value = s.Hex
		}
		fmt.Fprintf(w, "  0x%03X %3d  %-14s %s\n", s.Offset, s.Size, s.Name, value)
	}

	if len(rep.Features) > 0 {
		fmt.Fprintln(w)
		for _, f := range rep.Features {
			status := "unverified"
			if f.Valid != nil {
				if *f.Valid {
					status = "valid"
				} else {
					status = "INVALID"
				}
			}
			fmt.Fprintf(w, "  Feature %d: %s", f.Slot, status)
			if f.Error != "" {
				fmt.Fprintf(w, " (%s)", f.Error)
			}
			fmt.Fprintln(w)
		}
	}
}
