// Copyright the m2converter authors, 2026. All rights reserved.

package imzml

// XML mapping for the subset of the mzML/imzML schema the reader consumes.
// Everything else in the header is ignored.

type xmlMzML struct {
	FileDescription struct {
		FileContent xmlParamGroup `xml:"fileContent"`
	} `xml:"fileDescription"`

	RefParamGroups []struct {
		ID       string       `xml:"id,attr"`
		CVParams []xmlCVParam `xml:"cvParam"`
	} `xml:"referenceableParamGroupList>referenceableParamGroup"`

	ScanSettings []xmlParamGroup `xml:"scanSettingsList>scanSettings"`

	Spectra []xmlSpectrum `xml:"run>spectrumList>spectrum"`
}

type xmlCVParam struct {
	Accession string `xml:"accession,attr"`
	Name      string `xml:"name,attr"`
	Value     string `xml:"value,attr"`
}

type xmlParamGroup struct {
	CVParams []xmlCVParam `xml:"cvParam"`
}

type xmlGroupRef struct {
	Ref string `xml:"ref,attr"`
}

type xmlSpectrum struct {
	CVParams  []xmlCVParam  `xml:"cvParam"`
	RefGroups []xmlGroupRef `xml:"referenceableParamGroupRef"`

	Scans []xmlParamGroup `xml:"scanList>scan"`

	Arrays []xmlBinaryArray `xml:"binaryDataArrayList>binaryDataArray"`
}

type xmlBinaryArray struct {
	CVParams  []xmlCVParam  `xml:"cvParam"`
	RefGroups []xmlGroupRef `xml:"referenceableParamGroupRef"`
}

// fileContentValue returns the value of an accession in <fileContent>, or "".
func (d *xmlMzML) fileContentValue(accession string) string {
	return paramValue(d.FileDescription.FileContent.CVParams, accession)
}

// hasParam reports whether the accession appears in the param list.
func hasParam(params []xmlCVParam, accession string) bool {
	for _, p := range params {
		if p.Accession == accession {
			return true
		}
	}
	return false
}

// paramValue returns the value attribute of the accession, or "".
func paramValue(params []xmlCVParam, accession string) string {
	for _, p := range params {
		if p.Accession == accession {
			return p.Value
		}
	}
	return ""
}
