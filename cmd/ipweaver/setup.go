package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/term"

	"gitlab.bluewillows.net/root/ipweaver/internal/config"
	"gitlab.bluewillows.net/root/ipweaver/pkg/hosting"
	"gitlab.bluewillows.net/root/ipweaver/pkg/iplookup"
	"gitlab.bluewillows.net/root/ipweaver/providers/cloudflare"
	"gitlab.bluewillows.net/root/ipweaver/providers/route53"
)

// setupTimeout bounds the hosting API calls made by the wizard.
const setupTimeout = 30 * time.Second

// setupIO is the terminal the wizard talks to.
type setupIO struct {
	in         *bufio.Reader
	out        io.Writer
	readSecret func() (string, error)
}

func newSetupIO(in *os.File, out io.Writer) *setupIO {
	s := &setupIO{in: bufio.NewReader(in), out: out}
	s.readSecret = func() (string, error) {
		if !term.IsTerminal(int(in.Fd())) {
			return s.readLine()
		}
		b, err := term.ReadPassword(int(in.Fd()))
		fmt.Fprintln(out)
		if err != nil {
			return "", fmt.Errorf("error reading from stdin: %w", err)
		}
		return strings.TrimSpace(string(b)), nil
	}
	return s
}

func (s *setupIO) readLine() (string, error) {
	line, err := s.in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", fmt.Errorf("error reading from stdin: %w", err)
	}
	return strings.TrimSpace(line), nil
}

// ask prompts for a value, returning def on an empty answer.
func (s *setupIO) ask(prompt, def string) (string, error) {
	if def != "" {
		fmt.Fprintf(s.out, "%s [%s]: ", prompt, def)
	} else {
		fmt.Fprintf(s.out, "%s: ", prompt)
	}
	v, err := s.readLine()
	if err != nil {
		return "", err
	}
	if v == "" {
		return def, nil
	}
	return v, nil
}

func (s *setupIO) askSecret(prompt string) (string, error) {
	fmt.Fprintf(s.out, "%s: ", prompt)
	v, err := s.readSecret()
	if err != nil {
		return "", err
	}
	if v == "" {
		return "", fmt.Errorf("%s is required", strings.ToLower(prompt))
	}
	return v, nil
}

func (s *setupIO) confirm(prompt string, def bool) (bool, error) {
	hint := "y/N"
	if def {
		hint = "Y/n"
	}
	v, err := s.ask(prompt+" ("+hint+")", "")
	if err != nil {
		return false, err
	}
	if v == "" {
		return def, nil
	}
	switch strings.ToLower(v) {
	case "y", "yes":
		return true, nil
	case "n", "no":
		return false, nil
	default:
		return false, fmt.Errorf("expected yes or no, got %q", v)
	}
}

// runSetup asks for credentials, lets the user pick a hosted zone and a
// record, and writes a new config file to path.
func runSetup(ctx context.Context, s *setupIO, registry *hosting.Registry, path string) error {
	if path == "" {
		path = config.DefaultConfigFile
	}
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file %s already exists", path)
	}

	backendType, err := s.ask("Backend ("+strings.Join(registry.Types(), ", ")+")", route53.TypeName)
	if err != nil {
		return err
	}
	if !registry.Has(backendType) {
		return fmt.Errorf("unknown backend type: %s", backendType)
	}

	fileCfg := &config.FileConfig{Backend: backendType}
	settings := map[string]string{}

	switch backendType {
	case cloudflare.TypeName:
		token, err := s.askSecret("Cloudflare API token")
		if err != nil {
			return err
		}
		fileCfg.CloudflareToken = token
		settings["TOKEN"] = token
	default:
		accessKey, err := s.ask("AWS access key ID (empty for the default credential chain)", "")
		if err != nil {
			return err
		}
		if accessKey != "" {
			secret, err := s.askSecret("AWS secret access key")
			if err != nil {
				return err
			}
			fileCfg.AWSAccessKey = accessKey
			fileCfg.AWSSecretAccessKey = secret
			settings["ACCESS_KEY_ID"] = accessKey
			settings["SECRET_ACCESS_KEY"] = secret
		}
	}

	backend, err := registry.Create(backendType, backendType, settings)
	if err != nil {
		return err
	}

	listCtx, cancel := context.WithTimeout(ctx, setupTimeout)
	defer cancel()

	fmt.Fprintln(s.out, "verifying credentials...")
	if err := backend.Ping(listCtx); err != nil {
		return fmt.Errorf("verifying credentials: %w", err)
	}
	zones, err := backend.ListHostedZones(listCtx)
	if err != nil {
		return fmt.Errorf("listing hosted zones: %w", err)
	}
	if len(zones) == 0 {
		return errors.New("no hosted zones visible to these credentials")
	}

	zone, err := chooseZone(s, zones)
	if err != nil {
		return err
	}
	fileCfg.ZoneID = zone.ID

	record, err := s.ask("Record name", "home."+strings.TrimSuffix(zone.Name, "."))
	if err != nil {
		return err
	}
	fileCfg.RecordSet = hosting.CanonicalName(record)

	v4, err := s.confirm("Update IPv4 (A record)", true)
	if err != nil {
		return err
	}
	v6, err := s.confirm("Update IPv6 (AAAA record)", false)
	if err != nil {
		return err
	}
	if !v4 && !v6 {
		return errors.New("at least one address family must be enabled")
	}
	fileCfg.UpdateIPv4 = &v4
	fileCfg.UpdateIPv6 = &v6
	if v4 {
		fileCfg.ProviderV4 = iplookup.DefaultV4
	}
	if v6 {
		fileCfg.ProviderV6 = iplookup.DefaultV6
	}

	if err := config.WriteFile(path, fileCfg); err != nil {
		return err
	}
	fmt.Fprintf(s.out, "configuration written to %q\n", path)
	return nil
}

// chooseZone lists zones and reads a selection by number.
func chooseZone(s *setupIO, zones []hosting.HostedZone) (hosting.HostedZone, error) {
	fmt.Fprintln(s.out, "Hosted zones:")
	for i, z := range zones {
		fmt.Fprintf(s.out, "  %d) %s (%s)\n", i+1, z.Name, z.ID)
	}

	answer, err := s.ask("Zone", "1")
	if err != nil {
		return hosting.HostedZone{}, err
	}
	n, err := strconv.Atoi(answer)
	if err != nil || n < 1 || n > len(zones) {
		return hosting.HostedZone{}, fmt.Errorf("invalid zone selection %q", answer)
	}
	return zones[n-1], nil
}
