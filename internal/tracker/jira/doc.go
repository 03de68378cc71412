// Package jira implements the tracker capability for Jira Server/DC.
//
// Connections are made with github.com/andygrunwald/go-jira. Basic auth uses
// go-jira's BasicAuthTransport; OAuth 1.0a uses an RSA-SHA1 signer from
// github.com/dghubble/oauth1 with the private key registered on the Jira
// application link.
package jira
