// cmd/jcimporter/main.go

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/macadmins/jcimporter/pkg/artifact"
	"github.com/macadmins/jcimporter/pkg/config"
	"github.com/macadmins/jcimporter/pkg/deploy"
	"github.com/macadmins/jcimporter/pkg/jcapi"
	"github.com/macadmins/jcimporter/pkg/logging"
	"github.com/macadmins/jcimporter/pkg/version"
)

var logger *logging.Logger

func main() {
	// Define command-line flags.
	configPath := pflag.String("config", config.DefaultPath(), "Path to the configuration file.")
	showConfig := pflag.Bool("show-config", false, "Display the effective configuration and exit.")
	versionFlag := pflag.Bool("version", false, "Print the version and exit.")

	appName := pflag.String("name", "", "Software title name, as produced by the pkg recipe.")
	appVersion := pflag.String("app-version", "", "Target application version (0.0.0.0 forces remediation).")
	groupName := pflag.String("group", "", "System group name, or 'default' to derive it from name and version.")
	deployType := pflag.String("type", "", "Deployment type: self, auto, update or manual.")
	serviceUser := pflag.String("user", "", "JumpCloud user id designated to run the command.")
	dist := pflag.String("dist", "", "Distribution target: aws or none.")
	bucket := pflag.String("bucket", "", "Bucket to upload the package to.")
	pkgPath := pflag.String("pkg", "", "Path to the pkg or dmg to import.")
	trigger := pflag.Bool("trigger", false, "Attach a repeating schedule to the command.")
	repeat := pflag.String("repeat", "", "Schedule repeat unit (minute, hour, day, week, month).")
	schedule := pflag.String("schedule", "", "Cron expression for the repeating schedule.")

	// Count the number of -v flags.
	var verbosity int
	pflag.CountVarP(&verbosity, "verbose", "v", "Increase verbosity (e.g. -v, -vv)")
	pflag.Parse()

	logger = logging.New(verbosity > 0)

	if *versionFlag {
		if verbosity > 0 {
			version.PrintFull()
		} else {
			version.Print()
		}
		os.Exit(0)
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	applyFlagOverrides(cfg,
		*appName, *appVersion, *groupName, *deployType,
		*serviceUser, *dist, *bucket, *pkgPath, *repeat, *schedule)
	if pflag.CommandLine.Changed("trigger") {
		cfg.TriggerEnabled = *trigger
	}

	// Flags override the config file's log level.
	switch verbosity {
	case 0:
		// Keep the configured level.
	case 1:
		cfg.LogLevel = "INFO"
	default:
		cfg.LogLevel = "DEBUG"
	}

	if err := logging.Init(cfg); err != nil {
		logger.Fatal("Error initializing logger: %v", err)
	}
	defer logging.CloseLogger()
	if dir := logging.GetCurrentLogDir(); dir != "" {
		logger.Debug("Session %s logging to %s", logging.GetSessionID(), dir)
	}

	if *showConfig {
		dump, err := cfg.Dump()
		if err != nil {
			logger.Fatal("Error rendering configuration: %v", err)
		}
		fmt.Print(dump)
		os.Exit(0)
	}

	if err := cfg.Validate(); err != nil {
		logger.Error("%v", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := jcapi.New(cfg)

	var uploader deploy.Uploader
	if cfg.Distribution == "aws" {
		up, err := artifact.NewUploader(ctx, cfg.Bucket, cfg.BucketRegion)
		if err != nil {
			logger.Error("Failed to set up the package uploader: %v", err)
			os.Exit(1)
		}
		uploader = up
	}

	runner, err := deploy.NewRunner(cfg, client, uploader)
	if err != nil {
		logger.Error("%v", err)
		os.Exit(1)
	}

	if err := runner.Run(ctx); err != nil {
		logger.Error("Deployment run failed: %v", err)
		os.Exit(1)
	}
	logger.Success("%s %s deployed (%s mode)", cfg.AppName, cfg.AppVersion, cfg.DeployType)
}

// applyFlagOverrides copies any non-empty flag value over the loaded
// configuration. Flags win over both the config file and the environment.
func applyFlagOverrides(cfg *config.Configuration, name, appVersion, group, deployType, user, dist, bucket, pkg, repeat, schedule string) {
	overrides := []struct {
		value  string
		target *string
	}{
		{name, &cfg.AppName},
		{appVersion, &cfg.AppVersion},
		{group, &cfg.GroupName},
		{deployType, &cfg.DeployType},
		{user, &cfg.ServiceUserID},
		{dist, &cfg.Distribution},
		{bucket, &cfg.Bucket},
		{pkg, &cfg.PkgPath},
		{repeat, &cfg.TriggerRepeat},
		{schedule, &cfg.TriggerCron},
	}
	for _, o := range overrides {
		if o.value != "" {
			*o.target = o.value
		}
	}
}
