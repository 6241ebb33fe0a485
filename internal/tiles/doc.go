// Package tiles resolves a geographic box to Web-Mercator map tiles and
// stitches them into one background raster with an exact geographic extent.
//
// Tiles come from an injected [Source], so the stitching path is deterministic
// under test. Network and disk caching live in adapter/tileserver and
// adapter/tilecache. When no tile can be obtained the caller renders one of
// the procedural backgrounds instead.
package tiles
