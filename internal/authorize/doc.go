// Package authorize resuelve requests de inicio de login social ("authorization
// requests" OAuth2): dado un request entrante, decide qué registration del
// tenant aplica, computa la redirect URI externa y arma la authorization URI
// con state y parámetros PKCE listos para el 302.
//
// Composición (sin herencia, cada colaborador se sustituye independiente):
//
//	Matcher ──▶ RegistrationResolver ──▶ RedirectURIBuilder ──▶ Resolver
//
// El Resolver es stateless: cada request se resuelve de punta a punta sin
// estado compartido, por lo que N resoluciones pueden correr concurrentes sin
// sincronización. El único punto bloqueante es el lookup al control plane,
// acotado por timeout y cancelable vía contexto.
package authorize
