package server

import (
	"errors"
	"io"
	"net/http"

	"github.com/sirosfoundation/go-smp/internal/smp"
	"github.com/sirosfoundation/go-smp/internal/storage"
	"github.com/sirosfoundation/go-smp/internal/wire"
	"github.com/sirosfoundation/go-smp/pkg/identifier"
)

// registry serves one wire dialect's operation set. All three dialect
// registries delegate to the same managers; only parsing and rendering
// differ.
//
// Every write follows the same sequence: parse path identifiers, parse
// the body and reject identifier mismatches between path and body
// before any manager call, authenticate, check ownership against the
// existing group, then delegate.
type registry struct {
	server     *Server
	name       string
	mount      string
	translator wire.Translator
}

func (g *registry) op(name string) string {
	return g.name + "." + name
}

// parseParticipant parses the path participant, writing a 400 and
// returning nil on malformed input.
func (g *registry) parseParticipant(w http.ResponseWriter, r *http.Request, operation string) *identifier.Participant {
	p := g.server.ids.ParseParticipant(r.PathValue("participantID"))
	if p == nil {
		g.server.badRequest(w, operation, "malformed participant identifier")
	}
	return p
}

// parseDocType parses the path document type, writing a 400 and
// returning nil on malformed input.
func (g *registry) parseDocType(w http.ResponseWriter, r *http.Request, operation string) *identifier.DocType {
	d := g.server.ids.ParseDocType(r.PathValue("docTypeID"))
	if d == nil {
		g.server.badRequest(w, operation, "malformed document type identifier")
	}
	return d
}

func (g *registry) readBody(w http.ResponseWriter, r *http.Request, operation string) []byte {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err != nil {
		g.server.badRequest(w, operation, "reading request body: "+err.Error())
		return nil
	}
	return data
}

// authenticate resolves the caller, writing a 401 and returning nil on
// failure.
func (g *registry) authenticate(w http.ResponseWriter, r *http.Request, operation string) *storage.User {
	user, err := g.server.authn.Authenticate(r)
	if err != nil {
		g.server.writeOperationError(w, operation, err)
		return nil
	}
	return user
}

// requireOwnedGroup looks up the service group and checks the caller
// owns it, writing a 404 or 401 and returning nil on failure.
func (g *registry) requireOwnedGroup(w http.ResponseWriter, r *http.Request, operation string, p identifier.Participant, user *storage.User) *storage.ServiceGroup {
	sg, err := g.server.groups.GetByID(r.Context(), p)
	if err != nil {
		g.server.writeOperationError(w, operation, err)
		return nil
	}
	if sg == nil {
		g.server.notFound(w, operation, "service group not found")
		return nil
	}
	if err := g.server.gate.Verify(sg, user); err != nil {
		g.server.writeOperationError(w, operation, err)
		return nil
	}
	return sg
}

// Service group operations

func (g *registry) handleGetServiceGroup(w http.ResponseWriter, r *http.Request) {
	operation := g.op("getServiceGroup")

	p := g.parseParticipant(w, r, operation)
	if p == nil {
		return
	}

	sg, err := g.server.groups.GetByID(r.Context(), *p)
	if err != nil {
		g.server.writeOperationError(w, operation, err)
		return
	}
	if sg == nil {
		g.server.notFound(w, operation, "service group not found")
		return
	}

	infos, err := g.server.services.GetAllOfServiceGroup(r.Context(), sg.ID)
	if err != nil {
		g.server.writeOperationError(w, operation, err)
		return
	}
	redirects, err := g.server.redirects.GetAllOfServiceGroup(r.Context(), sg.ID)
	if err != nil {
		g.server.writeOperationError(w, operation, err)
		return
	}

	refs := wire.BuildReferences(g.server.externalURL(r, g.mount), sg.Participant, infos, redirects)
	body, err := g.translator.MarshalServiceGroup(sg, refs)
	if err != nil {
		g.server.writeOperationError(w, operation, err)
		return
	}

	g.server.operationOK(operation)
	g.server.xmlResponse(w, g.translator.ContentType(), body, http.StatusOK)
}

func (g *registry) handlePutServiceGroup(w http.ResponseWriter, r *http.Request) {
	operation := g.op("saveServiceGroup")

	p := g.parseParticipant(w, r, operation)
	if p == nil {
		return
	}
	data := g.readBody(w, r, operation)
	if data == nil {
		return
	}

	in, err := g.translator.UnmarshalServiceGroup(data)
	if err != nil {
		g.server.badRequest(w, operation, err.Error())
		return
	}
	if in.Participant == nil {
		g.server.badRequest(w, operation, "participant identifier missing from body")
		return
	}
	if !g.server.ids.HasSameContent(p, in.Participant) {
		g.server.badRequest(w, operation, "participant identifier in body does not match path")
		return
	}

	user := g.authenticate(w, r, operation)
	if user == nil {
		return
	}

	existing, err := g.server.groups.GetByID(r.Context(), *p)
	if err != nil {
		g.server.writeOperationError(w, operation, err)
		return
	}

	if existing != nil {
		if err := g.server.gate.Verify(existing, user); err != nil {
			g.server.writeOperationError(w, operation, err)
			return
		}
		if _, err := g.server.groups.Update(r.Context(), *p, existing.OwnerID, in.Extension); err != nil {
			g.server.writeOperationError(w, operation, err)
			return
		}
	} else {
		if _, err := g.server.groups.Create(r.Context(), user.ID, *p, in.Extension, g.server.config.SML.Enabled); err != nil {
			g.server.writeOperationError(w, operation, err)
			return
		}
	}

	g.server.operationOK(operation)
	w.WriteHeader(http.StatusOK)
}

func (g *registry) handleDeleteServiceGroup(w http.ResponseWriter, r *http.Request) {
	operation := g.op("deleteServiceGroup")

	p := g.parseParticipant(w, r, operation)
	if p == nil {
		return
	}
	user := g.authenticate(w, r, operation)
	if user == nil {
		return
	}
	if g.requireOwnedGroup(w, r, operation, *p, user) == nil {
		return
	}

	if _, err := g.server.groups.Delete(r.Context(), *p, g.server.config.SML.Enabled); err != nil {
		g.server.writeOperationError(w, operation, err)
		return
	}

	g.server.operationOK(operation)
	w.WriteHeader(http.StatusOK)
}

// Service metadata operations

func (g *registry) handleGetServiceMetadata(w http.ResponseWriter, r *http.Request) {
	operation := g.op("getServiceMetadata")

	p := g.parseParticipant(w, r, operation)
	if p == nil {
		return
	}
	d := g.parseDocType(w, r, operation)
	if d == nil {
		return
	}

	sgID := storage.ServiceGroupID(*p)
	redirect, err := g.server.redirects.FindByGroupAndDocType(r.Context(), sgID, *d)
	if err != nil {
		g.server.writeOperationError(w, operation, err)
		return
	}
	si, err := g.server.services.FindByGroupAndDocType(r.Context(), sgID, *d)
	if err != nil {
		g.server.writeOperationError(w, operation, err)
		return
	}

	md, ok := wire.ResolveMetadata(si, redirect)
	if !ok {
		g.server.notFound(w, operation, "service metadata not found")
		return
	}

	body, err := g.translator.MarshalServiceMetadata(md)
	if err != nil {
		g.server.writeOperationError(w, operation, err)
		return
	}

	g.server.operationOK(operation)
	g.server.xmlResponse(w, g.translator.ContentType(), body, http.StatusOK)
}

func (g *registry) handlePutServiceMetadata(w http.ResponseWriter, r *http.Request) {
	operation := g.op("saveServiceMetadata")

	p := g.parseParticipant(w, r, operation)
	if p == nil {
		return
	}
	d := g.parseDocType(w, r, operation)
	if d == nil {
		return
	}
	data := g.readBody(w, r, operation)
	if data == nil {
		return
	}

	in, err := g.translator.UnmarshalServiceMetadata(data)
	if err != nil {
		g.server.badRequest(w, operation, err.Error())
		return
	}
	if in.Participant != nil && !g.server.ids.HasSameContent(p, in.Participant) {
		g.server.badRequest(w, operation, "participant identifier in body does not match path")
		return
	}
	if in.DocType != nil && !g.server.ids.HasSameDocType(d, in.DocType) {
		g.server.badRequest(w, operation, "document type identifier in body does not match path")
		return
	}

	user := g.authenticate(w, r, operation)
	if user == nil {
		return
	}
	sg := g.requireOwnedGroup(w, r, operation, *p, user)
	if sg == nil {
		return
	}

	// The path identifiers are authoritative for the derived id
	if in.ServiceInformation != nil {
		si := in.ServiceInformation
		si.ServiceGroupID = sg.ID
		si.DocType = *d
		if err := g.server.services.Merge(r.Context(), si); err != nil {
			g.server.writeOperationError(w, operation, err)
			return
		}
	} else {
		redirect := in.Redirect
		redirect.ServiceGroupID = sg.ID
		redirect.DocType = *d
		if err := g.server.redirects.Save(r.Context(), redirect); err != nil {
			g.server.writeOperationError(w, operation, err)
			return
		}
	}

	g.server.operationOK(operation)
	w.WriteHeader(http.StatusOK)
}

func (g *registry) handleDeleteServiceMetadata(w http.ResponseWriter, r *http.Request) {
	operation := g.op("deleteServiceMetadata")

	p := g.parseParticipant(w, r, operation)
	if p == nil {
		return
	}
	d := g.parseDocType(w, r, operation)
	if d == nil {
		return
	}
	user := g.authenticate(w, r, operation)
	if user == nil {
		return
	}
	sg := g.requireOwnedGroup(w, r, operation, *p, user)
	if sg == nil {
		return
	}

	// At most one of the two exists for a pair; try both
	changed, err := g.server.services.Delete(r.Context(), sg.ID, *d)
	if err != nil {
		g.server.writeOperationError(w, operation, err)
		return
	}
	if changed == smp.Unchanged {
		changed, err = g.server.redirects.Delete(r.Context(), sg.ID, *d)
		if err != nil {
			g.server.writeOperationError(w, operation, err)
			return
		}
	}
	if changed == smp.Unchanged {
		g.server.notFound(w, operation, "service metadata not found")
		return
	}

	g.server.operationOK(operation)
	w.WriteHeader(http.StatusOK)
}

func (g *registry) handleDeleteAllServices(w http.ResponseWriter, r *http.Request) {
	operation := g.op("deleteAllServices")

	p := g.parseParticipant(w, r, operation)
	if p == nil {
		return
	}
	user := g.authenticate(w, r, operation)
	if user == nil {
		return
	}
	sg := g.requireOwnedGroup(w, r, operation, *p, user)
	if sg == nil {
		return
	}

	registrations, err := g.server.services.DeleteAllOfServiceGroup(r.Context(), sg.ID)
	if err != nil {
		g.server.writeOperationError(w, operation, err)
		return
	}
	redirects, err := g.server.redirects.DeleteAllOfServiceGroup(r.Context(), sg.ID)
	if err != nil {
		g.server.writeOperationError(w, operation, err)
		return
	}

	g.server.operationOK(operation)
	g.server.jsonResponse(w, map[string]any{
		"deletedRegistrations": registrations,
		"deletedRedirects":     redirects,
	}, http.StatusOK)
}

// Listing and export operations

func (g *registry) handleList(w http.ResponseWriter, r *http.Request) {
	operation := g.op("list")

	userID := r.PathValue("userID")
	user := g.authenticate(w, r, operation)
	if user == nil {
		return
	}
	if userID != user.ID && userID != user.UserName {
		g.server.writeOperationError(w, operation, errAuthMismatch)
		return
	}

	groups, err := g.server.groups.GetAllOfOwner(r.Context(), user.ID)
	if err != nil {
		g.server.writeOperationError(w, operation, err)
		return
	}

	ids := make([]string, 0, len(groups))
	for _, sg := range groups {
		ids = append(ids, sg.ID)
	}

	g.server.operationOK(operation)
	g.server.jsonResponse(w, map[string]any{
		"serviceGroups": ids,
		"total":         len(ids),
	}, http.StatusOK)
}

func (g *registry) handleComplete(w http.ResponseWriter, r *http.Request) {
	operation := g.op("getCompleteServiceGroup")

	p := g.parseParticipant(w, r, operation)
	if p == nil {
		return
	}

	sg, err := g.server.groups.GetByID(r.Context(), *p)
	if err != nil {
		g.server.writeOperationError(w, operation, err)
		return
	}
	if sg == nil {
		g.server.notFound(w, operation, "service group not found")
		return
	}

	infos, err := g.server.services.GetAllOfServiceGroup(r.Context(), sg.ID)
	if err != nil {
		g.server.writeOperationError(w, operation, err)
		return
	}
	redirects, err := g.server.redirects.GetAllOfServiceGroup(r.Context(), sg.ID)
	if err != nil {
		g.server.writeOperationError(w, operation, err)
		return
	}

	body, err := g.translator.MarshalCompleteServiceGroup(sg, infos, redirects)
	if err != nil {
		g.server.writeOperationError(w, operation, err)
		return
	}

	g.server.operationOK(operation)
	g.server.xmlResponse(w, g.translator.ContentType(), body, http.StatusOK)
}

// Business card operations

func (g *registry) handleGetBusinessCard(w http.ResponseWriter, r *http.Request) {
	operation := g.op("getBusinessCard")

	p := g.parseParticipant(w, r, operation)
	if p == nil {
		return
	}

	bc, err := g.server.cards.Get(r.Context(), *p)
	if err != nil {
		g.server.writeOperationError(w, operation, err)
		return
	}
	if bc == nil {
		g.server.notFound(w, operation, "business card not found")
		return
	}

	body, err := wire.MarshalBusinessCard(*p, bc)
	if err != nil {
		g.server.writeOperationError(w, operation, err)
		return
	}

	g.server.operationOK(operation)
	g.server.xmlResponse(w, g.translator.ContentType(), body, http.StatusOK)
}

func (g *registry) handlePutBusinessCard(w http.ResponseWriter, r *http.Request) {
	operation := g.op("saveBusinessCard")

	p := g.parseParticipant(w, r, operation)
	if p == nil {
		return
	}
	data := g.readBody(w, r, operation)
	if data == nil {
		return
	}

	bodyParticipant, entities, err := wire.UnmarshalBusinessCard(data, g.server.ids)
	if err != nil {
		g.server.badRequest(w, operation, err.Error())
		return
	}
	if bodyParticipant != nil && !g.server.ids.HasSameContent(p, bodyParticipant) {
		g.server.badRequest(w, operation, "participant identifier in body does not match path")
		return
	}

	user := g.authenticate(w, r, operation)
	if user == nil {
		return
	}
	if g.requireOwnedGroup(w, r, operation, *p, user) == nil {
		return
	}

	if _, err := g.server.cards.Save(r.Context(), *p, entities); err != nil {
		g.server.writeOperationError(w, operation, err)
		return
	}

	g.server.operationOK(operation)
	w.WriteHeader(http.StatusOK)
}

func (g *registry) handleDeleteBusinessCard(w http.ResponseWriter, r *http.Request) {
	operation := g.op("deleteBusinessCard")

	p := g.parseParticipant(w, r, operation)
	if p == nil {
		return
	}
	user := g.authenticate(w, r, operation)
	if user == nil {
		return
	}
	if g.requireOwnedGroup(w, r, operation, *p, user) == nil {
		return
	}

	changed, err := g.server.cards.Delete(r.Context(), *p)
	if err != nil {
		g.server.writeOperationError(w, operation, err)
		return
	}
	if changed == smp.Unchanged {
		g.server.notFound(w, operation, "business card not found")
		return
	}

	g.server.operationOK(operation)
	w.WriteHeader(http.StatusOK)
}

// errAuthMismatch rejects a list request for a different user's groups
var errAuthMismatch = errors.New("credentials do not match requested user")
