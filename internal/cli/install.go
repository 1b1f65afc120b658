package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/cloudera/llama-sub000/internal/config"
	"github.com/cloudera/llama-sub000/internal/installplan"
	"github.com/cloudera/llama-sub000/internal/packages"
	"github.com/cloudera/llama-sub000/internal/paths"
	"github.com/cloudera/llama-sub000/internal/roles"
	"github.com/cloudera/llama-sub000/internal/state"
	"github.com/cloudera/llama-sub000/internal/tools"
	"github.com/cloudera/llama-sub000/internal/tui"
)

var (
	installRoles        []string
	installUnattend     bool
	installAsSlave      bool
	installPrefix       string
	installHadoopMaster string
	installProperties   string
	installSettings     []string
	installOnly         []string
	installNoDeploy     bool
	installDeploy       deployFlags
)

func newInstallCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "install",
		Short: "Install the selected roles here and push the installer to the slaves",
		Args:  cobra.NoArgs,
		RunE:  runInstall,
	}

	cmd.Flags().StringSliceVar(&installRoles, "role", nil, "Roles to install, comma separated (default: roles from config)")
	cmd.Flags().BoolVar(&installUnattend, "unattend", false, "Never prompt; take every value from properties and defaults")
	cmd.Flags().BoolVar(&installAsSlave, "as-slave", false, "Run as a slave invoked by a master; implies --no-deploy")
	cmd.Flags().StringVar(&installPrefix, "prefix", "", "Install prefix (overrides "+packages.PropPrefix+")")
	cmd.Flags().StringVar(&installHadoopMaster, "hadoop-master", "", "Namenode and jobtracker host (overrides "+packages.PropHadoopMaster+")")
	cmd.Flags().StringVar(&installProperties, "properties", "", "Properties file with installer settings")
	cmd.Flags().StringArrayVar(&installSettings, "set", nil, "Override one property as key=value (repeatable)")
	cmd.Flags().StringSliceVar(&installOnly, "only", nil, "Run the phases of these tools only; the others keep their state")
	cmd.Flags().BoolVar(&installNoDeploy, "no-deploy", false, "Skip the fleet deployment")
	addDeployFlags(cmd, &installDeploy)

	return cmd
}

func runInstall(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	ws, err := openWorkspace()
	if err != nil {
		return err
	}
	defer ws.Close()

	roleNames := installRoles
	if len(roleNames) == 0 {
		roleNames = ws.cfg.Roles
	}
	if len(roleNames) == 0 {
		return fmt.Errorf("no roles selected: pass --role or set roles in %s", ws.paths.ConfigFile)
	}
	log := ws.log.WithFields(logrus.Fields{"roles": strings.Join(roleNames, ","), "slave": installAsSlave})
	log.Info("install started")

	props, err := loadProperties(ws, installProperties)
	if err != nil {
		return err
	}
	if err := applySettings(props, installSettings); err != nil {
		return err
	}
	props.SetIfNotEmpty(packages.PropPrefix, installPrefix)
	props.SetIfNotEmpty(packages.PropHadoopMaster, installHadoopMaster)

	catalog := roles.Default()
	reg := newRegistry()
	store := state.New(ws.paths.StateFile, ws.log)
	prims, items, err := loadTools(reg, catalog, store, roleNames)
	if err != nil {
		return err
	}

	ordered, err := installplan.New(items...).InstallItems()
	if err != nil {
		return err
	}
	only, err := onlySet(installOnly, ordered)
	if err != nil {
		return err
	}
	log.WithField("order", strings.Join(installplan.Names(ordered), ",")).Info("install order")

	env := &tools.Env{
		Props:    props,
		Runner:   newRunner(),
		Log:      ws.log,
		Roles:    prims,
		Unattend: installUnattend,
		AsSlave:  installAsSlave,
	}

	errOut := cmd.ErrOrStderr()
	progress := func(string) {}
	done := func(string) {}
	if !outputJSON && tui.IsTerminal(errOut) {
		status := tui.NewStatusWriter(errOut)
		defer status.Stop()
		progress = status.Update
		done = status.Complete
	} else if !outputJSON {
		env.Out = errOut
		progress = func(msg string) { fmt.Fprintln(errOut, msg) }
	}

	if err := runPhases(ctx, ordered, only, env, store, progress, done); err != nil {
		log.WithError(err).Error("install failed")
		return err
	}
	log.Info("local install finished")

	if installAsSlave || installNoDeploy {
		return nil
	}
	return deployFleet(cmd, ws, ordered, installDeploy)
}

func newRegistry() *tools.Registry {
	reg := tools.NewRegistry()
	packages.RegisterFactories(reg)
	return reg
}

// loadTools resolves roleNames and builds their tools, restoring persisted
// state when a state file exists.
func loadTools(reg *tools.Registry, catalog *roles.Catalog, store *state.Store, roleNames []string) ([]string, []tools.Tool, error) {
	prims, names, err := catalog.Resolve(roleNames)
	if err != nil {
		return nil, nil, err
	}
	exists, err := paths.FileExists(store.Path)
	if err != nil {
		return nil, nil, err
	}
	if exists {
		items, err := store.Restore(reg, catalog, roleNames)
		if err != nil {
			return nil, nil, err
		}
		return prims, items, nil
	}
	items := make([]tools.Tool, 0, len(names))
	for _, name := range names {
		t, err := reg.Ensure(name)
		if err != nil {
			return nil, nil, err
		}
		items = append(items, t)
	}
	return prims, items, nil
}

func loadProperties(ws *workspace, flagPath string) (*config.Properties, error) {
	path := ws.paths.PropertiesFile
	if flagPath != "" {
		path = ws.paths.Resolve(flagPath)
	}
	props := config.NewProperties()
	if path != "" {
		var err error
		if props, err = config.LoadProperties(path); err != nil {
			return nil, err
		}
	}
	seedProperty(props, packages.PropPrefix, ws.cfg.Prefix)
	seedProperty(props, packages.PropHadoopMaster, ws.cfg.HadoopMaster)
	seedProperty(props, packages.PropUser, ws.cfg.User)
	return props, nil
}

// applySettings sets every key=value pair given with --set.
func applySettings(props *config.Properties, settings []string) error {
	for _, kv := range settings {
		key, value, ok := strings.Cut(kv, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return fmt.Errorf("--set %q: want key=value", kv)
		}
		props.Set(key, value)
	}
	return nil
}

// seedProperty sets key from the YAML config unless the properties file or
// the environment already provide it.
func seedProperty(props *config.Properties, key, value string) {
	if value == "" || props.GetProperty(key, "") != "" {
		return
	}
	props.Set(key, value)
}

// onlySet validates --only against the planned tools. A nil set selects
// every tool.
func onlySet(names []string, ordered []tools.Tool) (map[string]bool, error) {
	if len(names) == 0 {
		return nil, nil
	}
	planned := make(map[string]bool, len(ordered))
	for _, t := range ordered {
		planned[t.Name()] = true
	}
	set := make(map[string]bool, len(names))
	var unknown []string
	for _, n := range names {
		n = strings.TrimSpace(n)
		if !planned[n] {
			unknown = append(unknown, n)
			continue
		}
		set[n] = true
	}
	if len(unknown) > 0 {
		return nil, fmt.Errorf("--only names tools outside the plan: %s", strings.Join(unknown, ", "))
	}
	return set, nil
}

type phase struct {
	name string
	run  func(tools.Tool, context.Context, *tools.Env) error
}

var phases = []phase{
	{"precheck", tools.Tool.Precheck},
	{"configure", tools.Tool.Configure},
	{"install", tools.Tool.Install},
	{"postinstall", tools.Tool.PostInstall},
	{"verify", tools.Tool.Verify},
}

// runPhases runs each phase over the ordered tools before moving to the next
// phase, persisting state after every phase and on failure.
func runPhases(ctx context.Context, ordered []tools.Tool, only map[string]bool, env *tools.Env, store *state.Store, progress, done func(string)) error {
	log := env.Logger()
	for _, ph := range phases {
		for _, t := range ordered {
			if only != nil && !only[t.Name()] {
				continue
			}
			if err := ctx.Err(); err != nil {
				return err
			}
			msg := fmt.Sprintf("%s %s", ph.name, t.Name())
			progress(msg)
			log.WithFields(logrus.Fields{"tool": t.Name(), "phase": ph.name}).Debug("phase started")
			if err := ph.run(t, ctx, env); err != nil {
				if perr := store.Persist(ordered); perr != nil {
					log.WithError(perr).Warn("could not persist state after failure")
				}
				return fmt.Errorf("%s %s: %w", ph.name, t.Name(), err)
			}
		}
		if err := store.Persist(ordered); err != nil {
			return err
		}
		done(ph.name)
	}
	return nil
}
