// Package railstream provides a source connector toolkit for pulling
// financial reports from the Railz accounting data API, with the building
// blocks reusable for similar paged, token-authenticated REST sources.
//
// # Architecture
//
// The toolkit is assembled from small, composable pieces:
//
// 1. Slice production: slicer.PairedSliceCursor walks the Cartesian product
// of two slice producers (business connections x report date windows) and
// tracks an incremental cursor per pair.
//
// 2. Record extraction: extractor.NestedRecordExtractor flattens nested
// response documents into individual records, propagating ancestor fields
// down to the leaves.
//
// 3. Authentication: auth.ShortLivedTokenAuthenticator exchanges basic-auth
// credentials for short-lived bearer tokens and caches them until expiry.
//
// 4. Reliability: every source embeds base.BaseConnector, which wires the
// circuit breaker, token-bucket rate limiter, retry policy with exponential
// backoff, and periodic health checks from pkg/clients.
//
// # Quick Start
//
// Read invoices from Railz:
//
//	import (
//	    "context"
//	    "github.com/ajitpratap0/railstream/pkg/config"
//	    "github.com/ajitpratap0/railstream/pkg/connector/registry"
//	    _ "github.com/ajitpratap0/railstream/pkg/connector/sources/railz"
//	)
//
//	cfg := config.NewBaseConfig("railz-invoices", "railz")
//	cfg.Security.Credentials["client_id"] = clientID
//	cfg.Security.Credentials["secret_key"] = secretKey
//
//	source, err := registry.CreateSource("railz", cfg)
//	if err != nil {
//	    return err
//	}
//	if err := source.Initialize(ctx, cfg); err != nil {
//	    return err
//	}
//	stream, err := source.Read(ctx)
//	if err != nil {
//	    return err
//	}
//	for record := range stream.Records {
//	    // process record
//	    record.Release()
//	}
//
// The cmd/railstream CLI wraps the same flow with YAML configuration,
// state persistence between runs, and an availability check command.
package railstream
