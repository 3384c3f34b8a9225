// Package provider implements archive.Driver for the supported archiving
// services: the Internet Archive Wayback Machine, archive.today and
// self-hosted ArchiveBox instances.
package provider
