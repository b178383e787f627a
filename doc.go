// Copyright (c) 2024 SIROS Foundation
// SPDX-License-Identifier: BSD-2-Clause

/*
Package gosmp implements a Service Metadata Publisher (SMP) for the
PEPPOL and OASIS BDXR eDelivery networks.

# Overview

go-smp is a complete SMP server: it stores the service metadata of the
participants it hosts and answers resolution queries from accesspoints
that want to deliver documents to them. A participant's entry says which
document types it receives, under which processes, and at which
endpoint URLs. The server keeps the network locator (SML) in sync with
its local registrations and serves the same data over three wire
dialects simultaneously.

# Specifications Implemented

  - PEPPOL SMP 1.0 (busdox): https://docs.peppol.eu/edelivery/smp/PEPPOL-EDN-Service-Metadata-Publishing-1.2.0-2021-02-24.pdf
  - OASIS BDXR SMP 1.0: https://docs.oasis-open.org/bdxr/bdx-smp/v1.0/bdx-smp-v1.0.html
  - OASIS BDXR SMP 2.0: https://docs.oasis-open.org/bdxr/bdx-smp/v2.0/bdx-smp-v2.0.html
  - PEPPOL Directory BusinessCard 2018-06-21

# Package Structure

	github.com/sirosfoundation/go-smp/pkg/identifier        - Participant, document type and process identifiers
	github.com/sirosfoundation/go-smp/internal/smp          - Service group, registration, redirect and business card managers
	github.com/sirosfoundation/go-smp/internal/sml          - SML management client and DNS verification
	github.com/sirosfoundation/go-smp/internal/wire         - Wire dialect translators (peppol, bdxr1, bdxr2)
	github.com/sirosfoundation/go-smp/internal/storage      - Entity store (MongoDB, in-memory)
	github.com/sirosfoundation/go-smp/internal/server       - HTTP server and registry operations
	github.com/sirosfoundation/go-smp/internal/auth         - Caller authentication and ownership checks
	github.com/sirosfoundation/go-smp/cmd/smpd              - Server binary

# Running

	smpd -config /etc/smp/config.yaml

The same registry is mounted once per dialect under the configured base
path, so /smp/peppol/..., /smp/bdxr1/... and /smp/bdxr2/... all serve
one data set. Reads are open; every mutation requires credentials and
ownership of the addressed service group.

# SML Consistency

When SML integration is enabled, creating a service group registers the
participant at the SML before anything is persisted locally, and
deleting one deregisters it first. A local failure after the remote
call compensates the SML change, so the pair of systems never diverges
by more than the window of a single failed compensation, which is
logged for operator intervention.

# License

BSD-2-Clause License
*/
package gosmp
