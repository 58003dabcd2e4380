/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package core

import (
	"errors"
	"fmt"
	"time"

	"github.com/carverauto/routerwatch/pkg/logger"
	"github.com/carverauto/routerwatch/pkg/models"
	"github.com/carverauto/routerwatch/pkg/notify"
)

const (
	defaultListenAddr      = ":8090"
	defaultShutdownTimeout = 10 * time.Second

	defaultLiveInterval           = 3 * time.Second
	defaultSweepInterval          = 3 * time.Second
	defaultMinSpacing             = 2 * time.Second
	defaultDialTimeout            = 10 * time.Second
	defaultResourceTimeout        = 3 * time.Second
	defaultCommandTimeout         = 5 * time.Second
	defaultTrafficTimeout         = 10 * time.Second
	defaultBackgroundIdleTimeout  = 10 * time.Minute
	defaultInteractiveIdleTimeout = 24 * time.Hour
	defaultReapInterval           = time.Minute
	defaultResultReuseWindow      = 2 * time.Second
	defaultTrafficSampleTTL       = 30 * time.Second

	defaultDisconnectSweepInterval = 30 * time.Second
	defaultCPUThreshold            = 90
	defaultCPUSustainedSamples     = 3
	defaultCPUAlarmCooldown        = 15 * time.Minute
	defaultOfflineAlarmCooldown    = 30 * time.Minute
	defaultSendTimeout             = 10 * time.Second

	defaultNATSStream = "ROUTERWATCH_NOTIFICATIONS"
	maxPercent        = 100
)

var (
	errDatabaseHostRequired  = errors.New("database.host is required for the postgres driver")
	errUnsupportedDriver     = errors.New("unsupported database.driver")
	errSeedDevicesMemoryOnly = errors.New("devices can only be seeded with the memory driver")
	errSeedDeviceInvalid     = errors.New("seeded device needs device_id, workspace_id and host")
	errCPUThresholdRange     = errors.New("notifications.cpu_threshold must be between 1 and 100")
	errIntervalOrder         = errors.New("monitor.min_spacing must not exceed monitor.live_interval")
)

// MonitorConfig controls polling cadence, command deadlines and connection
// idle classes.
type MonitorConfig struct {
	LiveInterval           models.Duration `json:"live_interval"`
	SweepInterval          models.Duration `json:"sweep_interval"`
	MinSpacing             models.Duration `json:"min_spacing"`
	DialTimeout            models.Duration `json:"dial_timeout"`
	ResourceTimeout        models.Duration `json:"resource_timeout"`
	CommandTimeout         models.Duration `json:"command_timeout"`
	TrafficTimeout         models.Duration `json:"traffic_timeout"`
	BackgroundIdleTimeout  models.Duration `json:"background_idle_timeout"`
	InteractiveIdleTimeout models.Duration `json:"interactive_idle_timeout"`
	ReapInterval           models.Duration `json:"reap_interval"`
	ResultReuseWindow      models.Duration `json:"result_reuse_window"`
	TrafficSampleTTL       models.Duration `json:"traffic_sample_ttl"`
}

// NotificationsConfig controls debouncing and alarm cooldowns.
type NotificationsConfig struct {
	DisconnectSweepInterval models.Duration `json:"disconnect_sweep_interval"`
	DwellThreshold          models.Duration `json:"dwell_threshold"`
	CPUThreshold            int             `json:"cpu_threshold"`
	CPUSustainedSamples     int             `json:"cpu_sustained_samples"`
	CPUAlarmCooldown        models.Duration `json:"cpu_alarm_cooldown"`
	OfflineAlarmCooldown    models.Duration `json:"offline_alarm_cooldown"`
	SendTimeout             models.Duration `json:"send_timeout"`
}

// NATSConfig enables outbound chat delivery through JetStream. Without a URL
// notifications are only logged.
type NATSConfig struct {
	URL           string                 `json:"url"`
	Domain        string                 `json:"domain,omitempty"`
	Stream        string                 `json:"stream"`
	SubjectPrefix string                 `json:"subject_prefix"`
	Security      *models.SecurityConfig `json:"security,omitempty"`
}

// SeedDevice is a registry entry loaded from configuration when the memory
// driver is used.
type SeedDevice struct {
	DeviceID    string `json:"device_id"`
	WorkspaceID string `json:"workspace_id"`
	Name        string `json:"name"`
	Host        string `json:"host"`
	Port        int    `json:"port"`
	Username    string `json:"username"`
	Password    string `json:"password" sensitive:"true"`
}

// Device converts the seed into a registry entry.
func (s SeedDevice) Device() models.Device {
	return models.Device{
		DeviceID:    s.DeviceID,
		WorkspaceID: s.WorkspaceID,
		Name:        s.Name,
		Credentials: models.Credentials{
			Host:     s.Host,
			Port:     s.Port,
			Username: s.Username,
			Password: s.Password,
		},
	}
}

// Config is the service configuration file.
type Config struct {
	ListenAddr      string               `json:"listen_addr"`
	AllowedOrigins  []string             `json:"allowed_origins,omitempty"`
	ShutdownTimeout models.Duration      `json:"shutdown_timeout"`
	Monitor         MonitorConfig        `json:"monitor"`
	Notifications   NotificationsConfig  `json:"notifications"`
	Database        *models.CNPGDatabase `json:"database"`
	NATS            *NATSConfig          `json:"nats,omitempty"`
	Logging         *logger.Config       `json:"logging,omitempty"`
	Devices         []SeedDevice         `json:"devices,omitempty"`
}

// Validate fills defaults and rejects inconsistent settings. It is called by
// config.LoadAndValidate.
func (c *Config) Validate() error {
	if c.ListenAddr == "" {
		c.ListenAddr = defaultListenAddr
	}

	c.ShutdownTimeout = c.ShutdownTimeout.OrDefault(defaultShutdownTimeout)

	c.Monitor.applyDefaults()
	c.Notifications.applyDefaults()

	if c.Monitor.MinSpacing > c.Monitor.LiveInterval {
		return errIntervalOrder
	}

	if c.Notifications.CPUThreshold < 1 || c.Notifications.CPUThreshold > maxPercent {
		return errCPUThresholdRange
	}

	if c.Logging == nil {
		c.Logging = logger.DefaultConfig()
	}

	if err := c.validateDatabase(); err != nil {
		return err
	}

	if c.NATS != nil {
		if c.NATS.Stream == "" {
			c.NATS.Stream = defaultNATSStream
		}

		if c.NATS.SubjectPrefix == "" {
			c.NATS.SubjectPrefix = notify.DefaultSubjectPrefix
		}
	}

	return nil
}

// OutboundEnabled reports whether notifications leave the process.
func (c *Config) OutboundEnabled() bool {
	return c.NATS != nil && c.NATS.URL != ""
}

func (c *Config) validateDatabase() error {
	if c.Database == nil {
		c.Database = &models.CNPGDatabase{}
	}

	if c.Database.Driver == "" {
		c.Database.Driver = models.DatabaseDriverPostgres
	}

	switch c.Database.Driver {
	case models.DatabaseDriverPostgres:
		if c.Database.Host == "" {
			return errDatabaseHostRequired
		}

		if len(c.Devices) > 0 {
			return errSeedDevicesMemoryOnly
		}
	case models.DatabaseDriverMemory:
		for i, d := range c.Devices {
			if d.DeviceID == "" || d.WorkspaceID == "" || d.Host == "" {
				return fmt.Errorf("%w: devices[%d]", errSeedDeviceInvalid, i)
			}
		}
	default:
		return fmt.Errorf("%w: %q", errUnsupportedDriver, c.Database.Driver)
	}

	return nil
}

func (m *MonitorConfig) applyDefaults() {
	m.LiveInterval = m.LiveInterval.OrDefault(defaultLiveInterval)
	m.SweepInterval = m.SweepInterval.OrDefault(defaultSweepInterval)
	m.MinSpacing = m.MinSpacing.OrDefault(defaultMinSpacing)
	m.DialTimeout = m.DialTimeout.OrDefault(defaultDialTimeout)
	m.ResourceTimeout = m.ResourceTimeout.OrDefault(defaultResourceTimeout)
	m.CommandTimeout = m.CommandTimeout.OrDefault(defaultCommandTimeout)
	m.TrafficTimeout = m.TrafficTimeout.OrDefault(defaultTrafficTimeout)
	m.BackgroundIdleTimeout = m.BackgroundIdleTimeout.OrDefault(defaultBackgroundIdleTimeout)
	m.InteractiveIdleTimeout = m.InteractiveIdleTimeout.OrDefault(defaultInteractiveIdleTimeout)
	m.ReapInterval = m.ReapInterval.OrDefault(defaultReapInterval)
	m.ResultReuseWindow = m.ResultReuseWindow.OrDefault(defaultResultReuseWindow)
	m.TrafficSampleTTL = m.TrafficSampleTTL.OrDefault(defaultTrafficSampleTTL)
}

func (n *NotificationsConfig) applyDefaults() {
	n.DisconnectSweepInterval = n.DisconnectSweepInterval.OrDefault(defaultDisconnectSweepInterval)
	n.DwellThreshold = n.DwellThreshold.OrDefault(notify.DefaultDwellThreshold)
	n.CPUAlarmCooldown = n.CPUAlarmCooldown.OrDefault(defaultCPUAlarmCooldown)
	n.OfflineAlarmCooldown = n.OfflineAlarmCooldown.OrDefault(defaultOfflineAlarmCooldown)
	n.SendTimeout = n.SendTimeout.OrDefault(defaultSendTimeout)

	if n.CPUThreshold == 0 {
		n.CPUThreshold = defaultCPUThreshold
	}

	if n.CPUSustainedSamples <= 0 {
		n.CPUSustainedSamples = defaultCPUSustainedSamples
	}
}
