// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package clicmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/juju/cmd/v3"
	"github.com/juju/gnuflag"
	"golang.org/x/oauth2/clientcredentials"
	"gopkg.in/errgo.v1"
	"gopkg.in/yaml.v2"

	"github.com/release-engineering/waiverdb/version"
	"github.com/release-engineering/waiverdb/waiverdbclient"
)

const loggingConfigEnvKey = "WAIVERDB_LOGGING_CONFIG"

// The supported values of the auth-method client configuration
// parameter.
const (
	authNone  = "none"
	authBasic = "basic"
	authOIDC  = "oidc"
)

var cmdDoc = `
Create and query waivers on a waiverdb server. The server is specified
with the --url flag, the WAIVERDB_URL environment variable or the
api-url parameter of the client configuration file, in that order of
precedence.

The client configuration file is a YAML file specified with the
--config-file flag. It holds the following parameters:

    api-url             URL of the waiverdb server
    auth-method         one of none, basic or oidc
    username, password  credentials for basic authentication
    oidc-token-url      token endpoint of the OpenID Connect provider
    oidc-client-id      OAuth2 client credentials
    oidc-client-secret
    oidc-scopes         list of scopes to request
`

// New returns the waiverdb-cli command.
func New() cmd.Command {
	c := new(waiverdbCommand)
	supercmd := cmd.NewSuperCommand(cmd.SuperCommandParams{
		Name:    "waiverdb-cli",
		Doc:     cmdDoc,
		Purpose: "manage waivers on a waiverdb server",
		Log: &cmd.Log{
			DefaultConfig: os.Getenv(loggingConfigEnvKey),
		},
		GlobalFlags: c,
		Version:     version.VersionInfo.Version,
	})
	supercmd.Register(newCreateCommand(c))
	supercmd.Register(newListCommand(c))
	supercmd.Register(newPermissionsCommand(c))
	supercmd.Register(newShowCommand(c))
	return supercmd
}

// ClientConfig holds the contents of a client configuration file.
type ClientConfig struct {
	APIURL           string   `yaml:"api-url"`
	AuthMethod       string   `yaml:"auth-method"`
	Username         string   `yaml:"username"`
	Password         string   `yaml:"password"`
	OIDCTokenURL     string   `yaml:"oidc-token-url"`
	OIDCClientID     string   `yaml:"oidc-client-id"`
	OIDCClientSecret string   `yaml:"oidc-client-secret"`
	OIDCScopes       []string `yaml:"oidc-scopes"`
}

func (conf *ClientConfig) validate() error {
	var required []string
	switch conf.AuthMethod {
	case "", authNone:
	case authBasic:
		if conf.Username == "" {
			required = append(required, "username")
		}
	case authOIDC:
		if conf.OIDCTokenURL == "" {
			required = append(required, "oidc-token-url")
		}
		if conf.OIDCClientID == "" {
			required = append(required, "oidc-client-id")
		}
	default:
		return errgo.Newf("the waiverdb authentication method %q is not supported", conf.AuthMethod)
	}
	if len(required) > 0 {
		return errgo.Newf("the config option %q is required", required[0])
	}
	return nil
}

func readClientConfig(path string) (*ClientConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errgo.Notef(err, "cannot read client configuration")
	}
	var conf ClientConfig
	if err := yaml.Unmarshal(data, &conf); err != nil {
		return nil, errgo.Notef(err, "cannot parse %q", path)
	}
	if err := conf.validate(); err != nil {
		return nil, errgo.Mask(err)
	}
	return &conf, nil
}

// waiverdbCommand is a cmd.Command that provides a client for
// communicating with a waiverdb server.
type waiverdbCommand struct {
	cmd.CommandBase

	url        string
	configFile string

	// mu protects the fields below it.
	mu     sync.Mutex
	client *waiverdbclient.Client
}

// AddFlags implements cmd.FlagAdder to add global flags
// to the flag set.
func (c *waiverdbCommand) AddFlags(f *gnuflag.FlagSet) {
	f.StringVar(&c.url, "url", "", "URL of the waiverdb server (defaults to $WAIVERDB_URL)")
	f.StringVar(&c.configFile, "C", "", "path of the client configuration file")
	f.StringVar(&c.configFile, "config-file", "", "")
}

// Client creates a new waiverdbclient.Client using the parameters
// specified in the flags, environment and configuration file.
func (c *waiverdbCommand) Client(ctxt *cmd.Context) (*waiverdbclient.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.client != nil {
		return c.client, nil
	}
	conf := new(ClientConfig)
	if c.configFile != "" {
		var err error
		conf, err = readClientConfig(ctxt.AbsPath(c.configFile))
		if err != nil {
			return nil, errgo.Mask(err)
		}
	}
	url := serverURL(c.url, conf)
	if url == "" {
		return nil, errgo.New("no waiverdb server specified, please set --url or $WAIVERDB_URL")
	}
	p := waiverdbclient.NewParams{
		BaseURL: strings.TrimSuffix(strings.TrimSuffix(url, "/"), "/api/v1.0"),
	}
	switch conf.AuthMethod {
	case authBasic:
		p.Username = conf.Username
		p.Password = conf.Password
	case authOIDC:
		cc := clientcredentials.Config{
			ClientID:     conf.OIDCClientID,
			ClientSecret: conf.OIDCClientSecret,
			TokenURL:     conf.OIDCTokenURL,
			Scopes:       conf.OIDCScopes,
		}
		p.Doer = cc.Client(context.Background())
	default:
		p.Doer = http.DefaultClient
	}
	client, err := waiverdbclient.New(p)
	if err != nil {
		return nil, errgo.Mask(err)
	}
	c.client = client
	return client, nil
}

func serverURL(url string, conf *ClientConfig) string {
	if url != "" {
		return url
	}
	if url := os.Getenv("WAIVERDB_URL"); url != "" {
		return url
	}
	return conf.APIURL
}

// int64sValue is a gnuflag.Value that collects the integers given in
// repeated uses of a flag.
type int64sValue struct {
	values *[]int64
}

// Set implements gnuflag.Value.Set.
func (v int64sValue) Set(s string) error {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return errgo.Newf("invalid integer %q", s)
	}
	*v.values = append(*v.values, n)
	return nil
}

// String implements gnuflag.Value.String.
func (v int64sValue) String() string {
	if v.values == nil {
		return ""
	}
	ss := make([]string, len(*v.values))
	for i, n := range *v.values {
		ss[i] = fmt.Sprint(n)
	}
	return strings.Join(ss, ",")
}
