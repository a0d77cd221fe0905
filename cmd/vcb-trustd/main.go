// Command vcb-trustd serves issuer keys and published status lists over gRPC
// so verifiers can share one trust registry.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"

	"xdao.co/vcb/compliance"
	"xdao.co/vcb/storage"
	"xdao.co/vcb/storage/casconfig"
	"xdao.co/vcb/trust"
	"xdao.co/vcb/trust/grpctrust"
	"xdao.co/vcb/trustlist"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stderr))
}

type options struct {
	listen        string
	metricsListen string
	casConfig     string
	casDir        string
	backend       string
	trustList     string
	strict        bool
	cacheSize     int
	listTTL       time.Duration
	maxMsgBytes   int
}

func parseFlags(args []string, errOut io.Writer) (options, error) {
	var o options
	fs := flag.NewFlagSet("vcb-trustd", flag.ContinueOnError)
	fs.SetOutput(errOut)
	fs.StringVar(&o.listen, "listen", "127.0.0.1:7777", "gRPC listen address")
	fs.StringVar(&o.metricsListen, "metrics-listen", "", "Serve Prometheus metrics on this address")
	fs.StringVar(&o.casConfig, "cas-config", "", "Storage backends YAML (see storage/casconfig)")
	fs.StringVar(&o.casDir, "cas-dir", "", "Single localfs backend directory (instead of --cas-config)")
	fs.StringVar(&o.backend, "backend", "", "Preferred backend id from --cas-config")
	fs.StringVar(&o.trustList, "trust-list", "", "Trust list file")
	fs.BoolVar(&o.strict, "strict", false, "Parse the trust list strictly")
	fs.IntVar(&o.cacheSize, "cache-size", 1024, "Cached keys and status lists")
	fs.DurationVar(&o.listTTL, "list-ttl", time.Minute, "How long a status list is served from cache")
	fs.IntVar(&o.maxMsgBytes, "max-msg-bytes", 16<<20, "Maximum gRPC message size")
	if err := fs.Parse(args); err != nil {
		return o, err
	}
	if o.trustList == "" {
		return o, errors.New("missing --trust-list")
	}
	if (o.casConfig == "") == (o.casDir == "") {
		return o, errors.New("exactly one of --cas-config or --cas-dir is required")
	}
	return o, nil
}

func run(args []string, errOut io.Writer) int {
	o, err := parseFlags(args, errOut)
	if err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			fmt.Fprintln(errOut, err)
		}
		return 2
	}
	logger := slog.New(slog.NewJSONHandler(errOut, &slog.HandlerOptions{Level: slog.LevelInfo}))

	resolver, err := openResolver(o)
	if err != nil {
		logger.Error("open trust registry", "err", err)
		return 1
	}

	lis, err := net.Listen("tcp", o.listen)
	if err != nil {
		logger.Error("listen", "addr", o.listen, "err", err)
		return 1
	}

	reg := prometheus.NewRegistry()
	s := newServer(resolver, reg, o.maxMsgBytes)

	if o.metricsListen != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		srv := &http.Server{Addr: o.metricsListen, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server", "err", err)
			}
		}()
		defer srv.Close()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		s.GracefulStop()
	}()

	logger.Info("vcb-trustd listening", "addr", lis.Addr().String(), "trust_list", o.trustList)
	if err := s.Serve(lis); err != nil {
		logger.Error("serve", "err", err)
		return 1
	}
	return 0
}

// openResolver loads the trust list and opens storage. Lookups are cached;
// status lists expire from the cache after --list-ttl so republished lists
// are picked up.
func openResolver(o options) (trust.Resolver, error) {
	mode := compliance.Permissive
	if o.strict {
		mode = compliance.Strict
	}
	data, err := os.ReadFile(o.trustList)
	if err != nil {
		return nil, err
	}
	l, err := trustlist.ParseWithCompliance(data, mode)
	if err != nil {
		return nil, fmt.Errorf("trust list %s: %w", o.trustList, err)
	}

	cfg := casconfig.Config{Backends: []casconfig.BackendConfig{{Name: "localfs", Dir: o.casDir}}}
	if o.casConfig != "" {
		cfg, err = casconfig.LoadFile(o.casConfig)
		if err != nil {
			return nil, err
		}
	}
	var store storage.Store
	store, err = cfg.Open(o.backend)
	if err != nil {
		return nil, err
	}

	base := &trust.CASResolver{Keys: l.Static(), Store: store}
	return trust.NewCaching(base, trust.CacheConfig{Size: o.cacheSize, ListTTL: o.listTTL}), nil
}

func newServer(r trust.Resolver, reg prometheus.Registerer, maxMsgBytes int) *grpc.Server {
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "vcb_trustd_requests_total",
		Help: "Trust RPCs served, by method and status code.",
	}, []string{"method", "code"})
	reg.MustRegister(requests)

	count := func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		resp, err := handler(ctx, req)
		requests.WithLabelValues(info.FullMethod, status.Code(err).String()).Inc()
		return resp, err
	}

	s := grpc.NewServer(
		grpc.MaxRecvMsgSize(maxMsgBytes),
		grpc.MaxSendMsgSize(maxMsgBytes),
		grpc.ChainUnaryInterceptor(count),
	)
	grpctrust.RegisterTrustServer(s, &grpctrust.Server{Resolver: r})
	return s
}
