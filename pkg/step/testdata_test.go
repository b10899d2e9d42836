package step_test

// cubeFile is a minimal STEP file with three points spanning a 10 mm cube.
const cubeFile = `ISO-10303-21;
HEADER;
FILE_DESCRIPTION(('Open CASCADE Model'),'2;1');
FILE_NAME('cube.step','2024-05-01T10:00:00',('Author'),('Org'),
  'Open CASCADE STEP processor 7.7','Open CASCADE 7.7','');
FILE_SCHEMA(('AUTOMOTIVE_DESIGN { 1 0 10303 214 1 1 1 1 }'));
ENDSEC;
DATA;
#1 = CARTESIAN_POINT('',(0.,0.,0.));
#2 = CARTESIAN_POINT('',(10.,0.,0.));
#3 = CARTESIAN_POINT('Corner',(10.,10.,10.));
#4 = DIRECTION('',(0.,0.,1.));
#5 = AXIS2_PLACEMENT_3D('',#1,#4,$);
ENDSEC;
END-ISO-10303-21;
`
